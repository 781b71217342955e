// Package llm provides chat completion clients and helpers for decoding
// JSON out of model responses.
package llm

import (
	"context"
	"fmt"
)

// Client sends a single system+user exchange and returns the reply text.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func emptyReply(provider string) error {
	return fmt.Errorf("llm: %s: empty reply", provider)
}
