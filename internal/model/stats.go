package model

import (
	"sync/atomic"
	"time"
)

// RunStatistics accumulates counters for one pipeline invocation. All
// counters are atomic so workers can record results without coordination;
// only the orchestrator creates and snapshots an instance.
type RunStatistics struct {
	started time.Time

	processed    atomic.Int64
	accepted     atomic.Int64
	rejected     atomic.Int64
	failed       atomic.Int64
	abandoned    atomic.Int64
	cacheHits    atomic.Int64
	apiCalls     atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

// NewRunStatistics starts the clock for a new run.
func NewRunStatistics() *RunStatistics {
	return &RunStatistics{started: time.Now()}
}

func (s *RunStatistics) RecordProcessed()           { s.processed.Add(1) }
func (s *RunStatistics) RecordAccepted()            { s.accepted.Add(1) }
func (s *RunStatistics) RecordRejected()            { s.rejected.Add(1) }
func (s *RunStatistics) RecordFailed()              { s.failed.Add(1) }
func (s *RunStatistics) RecordAbandoned(n int64)    { s.abandoned.Add(n) }
func (s *RunStatistics) RecordCacheHit()            { s.cacheHits.Add(1) }
func (s *RunStatistics) RecordAPICall()             { s.apiCalls.Add(1) }
func (s *RunStatistics) RecordTokens(in, out int64) { s.inputTokens.Add(in); s.outputTokens.Add(out) }

// APICalls returns the number of external API calls recorded so far.
func (s *RunStatistics) APICalls() int64 { return s.apiCalls.Load() }

// StatsSnapshot is an immutable view of RunStatistics for reporting.
type StatsSnapshot struct {
	Processed    int64         `json:"processed"`
	Accepted     int64         `json:"accepted"`
	Rejected     int64         `json:"rejected"`
	Failed       int64         `json:"failed"`
	Abandoned    int64         `json:"abandoned"`
	CacheHits    int64         `json:"cache_hits"`
	APICalls     int64         `json:"api_calls"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Snapshot captures the current counter values and elapsed time.
func (s *RunStatistics) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Processed:    s.processed.Load(),
		Accepted:     s.accepted.Load(),
		Rejected:     s.rejected.Load(),
		Failed:       s.failed.Load(),
		Abandoned:    s.abandoned.Load(),
		CacheHits:    s.cacheHits.Load(),
		APICalls:     s.apiCalls.Load(),
		InputTokens:  s.inputTokens.Load(),
		OutputTokens: s.outputTokens.Load(),
		Elapsed:      time.Since(s.started),
	}
}
