package docminer

import (
	"crypto/rand"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Stage names the step at which an item left the pipeline.
type Stage string

const (
	StageRead    Stage = "read"
	StageDecode  Stage = "decode"
	StageMine    Stage = "mine"
	StagePersist Stage = "persist"
)

// DefaultMaxFailures caps the failure detail kept in a Report.
const DefaultMaxFailures = 100

// Failure describes one skipped item.
type Failure struct {
	Ref   string `json:"ref"`
	Stage Stage  `json:"stage"`
	Err   string `json:"error"`
}

// Report summarizes a corpus run. Every seen item is either processed or
// skipped, except items in flight when a run aborts.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Seen      int `json:"seen"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`

	Unsupported       int `json:"unsupported"`
	ReadFailed        int `json:"read_failed"`
	DecodeFailed      int `json:"decode_failed"`
	MiningFailed      int `json:"mining_failed"`
	PersistFailed     int `json:"persist_failed"`
	LanguageFallbacks int `json:"language_fallbacks"`

	Failures        []Failure `json:"failures,omitempty"`
	FailuresDropped int       `json:"failures_dropped,omitempty"`
}

// Duration returns the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// JSON encodes the report.
func (r Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}

func (r Report) fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", r.RunID),
		zap.Int("seen", r.Seen),
		zap.Int("processed", r.Processed),
		zap.Int("skipped", r.Skipped),
		zap.Int("unsupported", r.Unsupported),
		zap.Int("decode_failed", r.DecodeFailed),
		zap.Int("mining_failed", r.MiningFailed),
		zap.Int("persist_failed", r.PersistFailed),
		zap.Int("language_fallbacks", r.LanguageFallbacks),
		zap.Duration("duration", r.Duration()),
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newRunID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// tally is the mutex-guarded report shared by workers.
type tally struct {
	mu          sync.Mutex
	report      Report
	maxFailures int
}

func newTally(now time.Time, maxFailures int) *tally {
	return &tally{
		report: Report{
			RunID:     newRunID(now),
			StartedAt: now,
		},
		maxFailures: maxFailures,
	}
}

func (t *tally) seen() {
	t.mu.Lock()
	t.report.Seen++
	t.mu.Unlock()
}

// processed records a completed item and returns the number of finished items.
func (t *tally) processed(fallback bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Processed++
	if fallback {
		t.report.LanguageFallbacks++
	}
	return t.report.Processed + t.report.Skipped
}

// skipped records a skipped item and returns the number of finished items.
func (t *tally) skipped(ref string, stage Stage, unsupported bool, err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := &t.report
	r.Skipped++
	switch {
	case unsupported:
		r.Unsupported++
	case stage == StageRead:
		r.ReadFailed++
	case stage == StageDecode:
		r.DecodeFailed++
	case stage == StageMine:
		r.MiningFailed++
	case stage == StagePersist:
		r.PersistFailed++
	}
	if len(r.Failures) < t.maxFailures {
		r.Failures = append(r.Failures, Failure{Ref: ref, Stage: stage, Err: err.Error()})
	} else {
		r.FailuresDropped++
	}
	return r.Processed + r.Skipped
}

func (t *tally) finish(now time.Time) Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.FinishedAt = now
	out := t.report
	out.Failures = append([]Failure(nil), t.report.Failures...)
	return out
}
