package core

import (
	"context"

	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/schema"
)

// Stream yields output records of one execution.
type Stream interface {
	Next(ctx context.Context) (string, error)
	Close() error
	SessionGone() bool
}

// Runner creates remote sessions and starts executions.
type Runner interface {
	CreateSession(ctx context.Context) (schema.VMID, error)
	Run(ctx context.Context, req execclient.RunRequest) (Stream, error)
}

// NewClientRunner adapts an execution client to Runner.
func NewClientRunner(client *execclient.Client) Runner {
	return clientRunner{client: client}
}

type clientRunner struct {
	client *execclient.Client
}

func (r clientRunner) CreateSession(ctx context.Context) (schema.VMID, error) {
	return r.client.CreateSession(ctx)
}

func (r clientRunner) Run(ctx context.Context, req execclient.RunRequest) (Stream, error) {
	stream, err := r.client.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
