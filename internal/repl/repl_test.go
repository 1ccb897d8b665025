package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/llm"
	"github.com/edgard/langcoach/internal/llm/llmtest"
)

func TestRunConversation(t *testing.T) {
	t.Parallel()

	client := &llmtest.Client{ReplyFunc: func(req llm.Request) (string, error) {
		return "echo: " + req.Messages[len(req.Messages)-1].Content, nil
	}}
	history := agent.NewMemoryHistory()
	a, err := agent.New("gpt-3", "p", nil, client, history)
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	in := strings.NewReader("Bonjour\n\n/reset\nÇa va?\n/quit\nnever read\n")
	var out bytes.Buffer
	if err := Run(context.Background(), in, &out, a, "Hi!"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Hi!", "echo: Bonjour", "Conversation cleared.", "echo: Ça va?"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "never read") {
		t.Error("input after /quit was processed")
	}
	if reqs := client.Requests(); len(reqs) != 2 || len(reqs[1].Messages) != 1 {
		t.Fatalf("expected history cleared before second question, got %+v", reqs)
	}
}

func TestRunEndsAtEOFAndReportsErrors(t *testing.T) {
	t.Parallel()

	a, err := agent.New("gpt-3", "p", nil, &llmtest.Client{Err: errors.New("offline")}, agent.NewMemoryHistory())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	var out bytes.Buffer
	if err := Run(context.Background(), strings.NewReader("hola\n"), &out, a, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "error: ") || !strings.Contains(out.String(), "offline") {
		t.Fatalf("expected the error to be printed:\n%s", out.String())
	}
}
