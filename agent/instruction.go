package agent

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hupe1980/agentloop/core"
)

// DefaultInstructions is the system prompt used when none is configured.
const DefaultInstructions = "You are a helpful assistant. Please respond to the user's request only based on the given context."

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, conv *core.Conversation) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, conv *core.Conversation) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, conv *core.Conversation) (string, error) {
	return f(ctx, conv)
}

// Instruction represents either a static (optionally templated) instruction
// string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string. Text may
// use text/template syntax; see Resolve for the available fields.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, conv *core.Conversation) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
// Static text is rendered as a template with the fields
// date (YYYY-MM-DD) and message_count.
func (i Instruction) Resolve(ctx context.Context, conv *core.Conversation) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, conv)
	}
	if !strings.Contains(i.text, "{{") {
		return i.text, nil
	}
	return render(i.text, map[string]any{
		"date":          time.Now().Format(time.DateOnly),
		"message_count": conv.Len(),
	})
}

var instructionFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"default": func(fallback, v any) any {
		if v == nil || v == "" {
			return fallback
		}
		return v
	},
}

func render(text string, data map[string]any) (string, error) {
	tmpl, err := template.New("instruction").Funcs(instructionFuncs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse instruction: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return b.String(), nil
}
