package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/educatorstribe/tribenews/internal/types"
)

// Stage processes a candidate and returns the (possibly modified) candidate.
// Return a Rejection to drop the candidate with a reason; any other error
// aborts the candidate as a failure.
type Stage interface {
	// Name returns the stage's identifier.
	Name() string

	// Process inspects or enriches a candidate.
	Process(ctx context.Context, cand *types.Candidate) (*types.Candidate, error)
}

// Rejection drops a candidate. It is an expected outcome, not a failure.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "rejected: " + r.Reason }

// Reject builds a Rejection for reason.
func Reject(reason string) error {
	return &Rejection{Reason: reason}
}

// Drop describes where and why a candidate left the pipeline.
type Drop struct {
	Stage  string
	Reason string
	URL    string
}

// Pipeline chains stages together.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a stage to the end of the chain.
func (p *Pipeline) Use(s Stage) *Pipeline {
	p.stages = append(p.stages, s)
	p.logger.Debug("stage added", "name", s.Name(), "position", len(p.stages))
	return p
}

// Process runs cand through every stage in order. An accepted candidate is
// returned with a nil Drop. A rejected candidate returns nil and the Drop.
func (p *Pipeline) Process(ctx context.Context, cand *types.Candidate) (*types.Candidate, *Drop, error) {
	current := cand

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		result, err := s.Process(ctx, current)
		if err != nil {
			var rej *Rejection
			if errors.As(err, &rej) {
				drop := &Drop{Stage: s.Name(), Reason: rej.Reason, URL: cand.URL}
				p.logger.Debug("candidate dropped", "stage", drop.Stage, "reason", drop.Reason, "url", drop.URL)
				return nil, drop, nil
			}
			return nil, nil, &types.PipelineError{
				Stage: s.Name(),
				URL:   cand.URL,
				Err:   err,
			}
		}
		if result == nil {
			drop := &Drop{Stage: s.Name(), Reason: "dropped", URL: cand.URL}
			p.logger.Debug("candidate dropped", "stage", drop.Stage, "url", drop.URL)
			return nil, drop, nil
		}
		current = result
	}

	return current, nil, nil
}

// Len returns the number of stages in the chain.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Names lists the stages in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}
