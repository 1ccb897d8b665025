// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/edgard/langcoach/internal/llm"
)

// Client replies with Reply (or fails with Err) and records every request.
type Client struct {
	Reply string
	Err   error
	// ReplyFunc, when set, overrides Reply.
	ReplyFunc func(req llm.Request) (string, error)

	mu       sync.Mutex
	requests []llm.Request
}

func (c *Client) Name() string { return "llmtest" }

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.ReplyFunc != nil {
		return c.ReplyFunc(req)
	}
	if c.Err != nil {
		return "", c.Err
	}
	return c.Reply, nil
}

// Requests returns a copy of every request received so far.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}
