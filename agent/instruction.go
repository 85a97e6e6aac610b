package agent

import "github.com/hupe1980/ordermesh/internal/util"

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(vars map[string]any) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(vars map[string]any) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(vars map[string]any) (string, error) { return f(vars) }

// Instruction represents either a static (template) instruction string or a
// dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a text/template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(vars map[string]any) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction was never set.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve renders the instruction with vars, invoking the provider if needed.
func (i Instruction) Resolve(vars map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(vars)
	}
	return util.RenderTemplate(i.text, vars)
}

// resolveInstruction resolves i, falling back to def when i is unset or
// fails to render. Render failures are logged; if def fails too its raw text
// is used.
func (b *BaseStage) resolveInstruction(i Instruction, def string, vars map[string]any) string {
	if !i.IsZero() {
		text, err := i.Resolve(vars)
		if err == nil {
			return text
		}
		b.logger.Warn("agent.instruction.failed", "stage", b.kind, "error", err)
	}
	text, err := util.RenderTemplate(def, vars)
	if err != nil {
		b.logger.Error("agent.instruction.default.failed", "stage", b.kind, "error", err)
		return def
	}
	return text
}
