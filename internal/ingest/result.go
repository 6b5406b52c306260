package ingest

import (
	"time"
)

// Run triggers.
const (
	TriggerTimer = "timer"
	TriggerAdmin = "admin"
	TriggerCLI   = "cli"
)

// SourceResult summarizes one source within a run.
type SourceResult struct {
	Name       string         `json:"name"`
	URL        string         `json:"url"`
	Candidates int            `json:"candidates"`
	Accepted   int            `json:"accepted"`
	Added      int            `json:"added"`
	Backfilled int            `json:"backfilled"`
	Touched    int            `json:"touched"`
	Dropped    map[string]int `json:"dropped,omitempty"`
	Failed     int            `json:"failed,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// RunResult summarizes one ingestion run.
type RunResult struct {
	ID         string         `json:"id"`
	Trigger    string         `json:"trigger"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   time.Duration  `json:"duration"`
	Sources    []SourceResult `json:"sources"`
	Candidates int            `json:"candidates"`
	Added      int            `json:"added"`
	Backfilled int            `json:"backfilled"`
	Touched    int            `json:"touched"`
	Cancelled  bool           `json:"cancelled,omitempty"`
}

func (r *RunResult) add(sr SourceResult) {
	r.Sources = append(r.Sources, sr)
	r.Candidates += sr.Candidates
	r.Added += sr.Added
	r.Backfilled += sr.Backfilled
	r.Touched += sr.Touched
}

// SkippedSources counts sources that could not be fetched or parsed.
func (r *RunResult) SkippedSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.Skipped {
			n++
		}
	}
	return n
}
