package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/prepwise/coach-go/internal/interview"
	"github.com/prepwise/coach-go/internal/rag"
)

// IndexPinger probes the retrieval service's embedder and vector index.
// It satisfies the Pinger interface and is used by GET /api/ready.
type IndexPinger struct {
	// svc is the retrieval service to probe.
	svc *rag.Service
	// name identifies the backend in readiness responses (e.g. "sqlite", "qdrant").
	name string
}

// NewIndexPinger constructs an IndexPinger for the given service and backend name.
func NewIndexPinger(svc *rag.Service, name string) *IndexPinger {
	return &IndexPinger{svc: svc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *IndexPinger) Name() string { return p.name }

// Ping delegates to the retrieval service's health check.
func (p *IndexPinger) Ping(ctx context.Context) error {
	if err := p.svc.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}

// ModelPinger probes a chat model by sending a minimal generate request.
// The probe consumes a handful of tokens, which is why /api/ready caps each
// probe with probeTimeout rather than retrying.
type ModelPinger struct {
	// gen is the chat model to probe.
	gen interview.Generator
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewModelPinger constructs a ModelPinger for the given model and backend name.
func NewModelPinger(gen interview.Generator, name string) *ModelPinger {
	return &ModelPinger{gen: gen, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *ModelPinger) Name() string { return p.name }

// Ping sends a single-word prompt and checks for any response.
func (p *ModelPinger) Ping(ctx context.Context) error {
	resp, err := p.gen.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}
