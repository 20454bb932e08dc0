package server

import (
	"context"
	"fmt"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
)

// StorePinger probes the vector store deployment through the access layer's
// readiness path. It satisfies the Pinger interface and is used by
// GET /api/ready.
type StorePinger struct {
	// store is the access layer whose deployment is probed.
	store *vecstore.Store
}

// NewStorePinger constructs a StorePinger over the given access layer.
func NewStorePinger(store *vecstore.Store) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "weaviate" }

// Ping probes the deployment's readiness endpoint through both API surfaces.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// LedgerPinger probes the ingestion report database with a bounded read.
// It satisfies the Pinger interface and is used by GET /api/ready.
type LedgerPinger struct {
	// ledger is the report store to probe.
	ledger Ledger
}

// NewLedgerPinger constructs a LedgerPinger over the given ledger.
func NewLedgerPinger(l Ledger) *LedgerPinger {
	return &LedgerPinger{ledger: l}
}

// Name returns the dependency label used in readiness responses.
func (p *LedgerPinger) Name() string { return "history" }

// Ping runs a single-row read against the report database.
func (p *LedgerPinger) Ping(ctx context.Context) error {
	if _, err := p.ledger.Recent(ctx, 1); err != nil {
		return fmt.Errorf("history database unavailable: %w", err)
	}
	return nil
}
