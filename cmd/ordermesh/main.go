// Command ordermesh runs the ordering assistant as an HTTP service or as an
// interactive chat in the terminal.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ordermesh"
	"github.com/hupe1980/ordermesh/config"
	"github.com/hupe1980/ordermesh/engine"
)

var version = "dev"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by all subcommands.
type globals struct {
	configPath string
	trace      bool
}

func (g *globals) load() (*config.Config, error) {
	return config.Load(g.configPath)
}

// options returns the façade options selected by the flags.
func (g *globals) options(w io.Writer) []func(o *ordermesh.Options) {
	if !g.trace {
		return nil
	}
	return []func(o *ordermesh.Options){func(o *ordermesh.Options) {
		o.Callbacks = traceCallbacks(w)
	}}
}

// traceCallbacks prints every turn lifecycle event to w.
func traceCallbacks(w io.Writer) *engine.CallbackManager {
	cm := engine.NewCallbackManager()
	emit := func(msg string) { fmt.Fprintln(w, msg) }
	for _, t := range []engine.CallbackType{
		engine.CallbackGuardDecision,
		engine.CallbackRouted,
		engine.CallbackStageComplete,
		engine.CallbackFallback,
		engine.CallbackOnError,
	} {
		cm.RegisterCallback(engine.NewLoggingCallback(t, emit))
	}
	return cm
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "ordermesh",
		Short:         "Conversational ordering assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (default ./ordermesh.yaml)")
	root.PersistentFlags().BoolVar(&g.trace, "trace", false, "print turn lifecycle events to stderr")

	root.AddCommand(
		newServeCmd(g),
		newChatCmd(g),
		newSeedCmd(),
		newIndexCmd(g),
	)
	return root
}
