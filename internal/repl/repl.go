// Package repl chats with the agent over a terminal, for local testing
// without any network transport.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/edgard/langcoach/internal/agent"
)

// Channel and ConversationID key the REPL's single conversation.
const (
	Channel        = "repl"
	ConversationID = "local"
)

const prompt = "> "

// Agent is the part of *agent.Agent the REPL uses.
type Agent interface {
	Respond(ctx context.Context, msg agent.Message) (string, error)
	Reset(ctx context.Context, channel, conversationID string) error
}

// Run reads lines from in and writes the agent's replies to out until in is
// exhausted, the user types /quit, or ctx is done. Agent failures are printed
// and the session continues.
func Run(ctx context.Context, in io.Reader, out io.Writer, a Agent, greeting string) error {
	if greeting != "" {
		fmt.Fprintln(out, greeting)
	}
	fmt.Fprintln(out, "Type /reset to start over, /quit to exit.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(out)
			return err
		case line = <-lines:
		}

		switch text := strings.TrimSpace(line); text {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := a.Reset(ctx, Channel, ConversationID); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Conversation cleared.")
		default:
			reply, err := a.Respond(ctx, agent.Message{Channel: Channel, ConversationID: ConversationID, Text: text})
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, reply)
		}
	}
}
