package whatsapp

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type Provider interface {
	// SendText delivers body to the E.164 number and returns the gateway message id.
	SendText(ctx context.Context, to string, body string) (string, error)
}

// NoOpProvider accepts every message without delivering it.
type NoOpProvider struct{}

func (p *NoOpProvider) SendText(ctx context.Context, to string, body string) (string, error) {
	return "noop-" + ulid.Make().String(), nil
}
