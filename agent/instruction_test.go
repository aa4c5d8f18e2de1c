package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/agentloop/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context, *core.Conversation) (string, error) {
	return m.text, m.err
}

func newTestConversation(t *testing.T) *core.Conversation {
	t.Helper()
	conv, err := core.NewConversation(core.NewUserMessage("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return conv
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	if !inst.IsStatic() {
		t.Fatalf("expected static instruction")
	}
	got, err := inst.Resolve(context.Background(), newTestConversation(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "static instruction" {
		t.Fatalf("expected 'static instruction', got %q", got)
	}
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromText("Today is {{.date}}. Messages so far: {{.message_count}}.")
	got, err := inst.Resolve(context.Background(), newTestConversation(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Today is " + time.Now().Format(time.DateOnly) + ". Messages so far: 1."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ context.Context, conv *core.Conversation) (string, error) {
		last, _ := conv.Last()
		return "dynamic via func: " + strings.ToUpper(last.Content), nil
	})
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(context.Background(), newTestConversation(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "dynamic via func: HELLO" {
		t.Fatalf("expected 'dynamic via func: HELLO', got %q", got)
	}
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(context.Background(), newTestConversation(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "provider text" {
		t.Fatalf("expected 'provider text', got %q", got)
	}
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: expectedErr})
	_, err := inst.Resolve(context.Background(), newTestConversation(t))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error %v, got %v", expectedErr, err)
	}
}

func TestInstruction_TemplateFuncs(t *testing.T) {
	inst := NewInstructionFromText(`{{upper "be brief"}} {{default "anon" .user}}`)
	got, err := inst.Resolve(context.Background(), newTestConversation(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "BE BRIEF anon" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestInstruction_TemplateParseError(t *testing.T) {
	inst := NewInstructionFromText("{{.date")
	if _, err := inst.Resolve(context.Background(), newTestConversation(t)); err == nil {
		t.Fatalf("expected parse error")
	}
}
