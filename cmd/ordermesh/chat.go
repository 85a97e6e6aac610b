package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ordermesh"
	"github.com/hupe1980/ordermesh/core"
)

func newChatCmd(g *globals) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cfg.Logging.Level == "info" {
				cfg.Logging.Level = "warn"
			}

			app, err := ordermesh.New(cmd.Context(), cfg, g.options(cmd.ErrOrStderr())...)
			if err != nil {
				return err
			}
			defer app.Close()

			if sessionID == "" {
				sessionID = core.NewID()
			}
			return chat(cmd, app, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume a session id")
	return cmd
}

func chat(cmd *cobra.Command, app *ordermesh.App, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Welcome to %s! Type \"quit\" to leave.\n", app.Config.Catalog.StoreName)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		res, err := app.Engine.PostTurn(cmd.Context(), sessionID, line)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Reply)
		if len(res.Cart) > 0 && res.OrderState != core.OrderConfirmed {
			fmt.Fprintf(out, "  [cart: %d items, %s%s, %s]\n",
				res.Cart.Items(), app.Config.Catalog.Currency, res.Cart.Total().StringFixed(2), res.OrderState)
		}
	}
}
