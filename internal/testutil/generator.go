package testutil

import (
	"context"
	"sync"
	"time"

	"tidy-go/internal/tidy"
)

// StubScanner returns canned file records.
type StubScanner struct {
	Files []tidy.FileRecord
	Err   error
}

func (s *StubScanner) Scan(ctx context.Context, dir string, computeHashes bool) ([]tidy.FileRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]tidy.FileRecord(nil), s.Files...), nil
}

// StubGenerator returns a canned plan after emitting canned insights.
// When Block is set it waits for ctx cancellation instead of returning,
// for exercising cancellation paths. Started, when non-nil, receives once
// per Generate call so tests can synchronize with a blocked generation.
type StubGenerator struct {
	Plan     *tidy.OrganizationPlan
	Insights []string
	Err      error
	Block    bool
	Started  chan struct{}

	mu              sync.Mutex
	gotInstructions []string
}

// GotInstructions returns the instructions string passed to each Generate
// call, in order.
func (g *StubGenerator) GotInstructions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.gotInstructions...)
}

func (g *StubGenerator) Generate(ctx context.Context, files []tidy.FileRecord, instructions string, onInsight func(tidy.Insight)) (*tidy.OrganizationPlan, error) {
	g.mu.Lock()
	g.gotInstructions = append(g.gotInstructions, instructions)
	g.mu.Unlock()
	if g.Started != nil {
		g.Started <- struct{}{}
	}
	for _, msg := range g.Insights {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if onInsight != nil {
			onInsight(tidy.Insight{Message: msg, EmittedAt: time.Now()})
		}
	}
	if g.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Plan, nil
}

// Compile-time checks
var (
	_ tidy.Scanner       = (*StubScanner)(nil)
	_ tidy.PlanGenerator = (*StubGenerator)(nil)
)
