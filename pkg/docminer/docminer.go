package docminer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/docminer/pkg/docminer/decode"
	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/mining"
	"github.com/cognicore/docminer/pkg/docminer/store"
)

const refStripes = 64

// CorpusMiner drives a Miner across a corpus and persists the results. A
// failing item is skipped and counted; only a cancelled context, a failing
// source or an unavailable store stop the run.
type CorpusMiner struct {
	decoder         *decode.Registry
	miner           *mining.Miner
	store           store.Store
	logger          *zap.Logger
	workers         int
	persistBlobs    bool
	defaultLanguage string
	docTimeout      time.Duration
	progressEvery   int
	maxFailures     int

	stripes [refStripes]sync.Mutex
}

// Options configures a CorpusMiner.
type Options struct {
	Decoder *decode.Registry // defaults to decode.Default()
	Miner   *mining.Miner
	Store   store.Store
	Logger  *zap.Logger

	// Workers is the number of items mined concurrently. 1 keeps source order.
	Workers int

	// PersistLemmaBlobs also writes each document's lemma sequence.
	PersistLemmaBlobs bool

	// DefaultLanguage is the fallback for undetected or unsupported languages.
	// Empty uses the miner's default.
	DefaultLanguage string

	// DocumentTimeout bounds mining of a single item; a timeout is a mining failure.
	DocumentTimeout time.Duration

	// ProgressEvery logs progress after this many finished items. 0 disables it.
	ProgressEvery int

	// MaxFailures caps Report.Failures. Defaults to DefaultMaxFailures.
	MaxFailures int
}

// New creates a CorpusMiner.
func New(opts Options) (*CorpusMiner, error) {
	if opts.Miner == nil {
		return nil, fmt.Errorf("%w: corpus miner needs a document miner", internalerr.ErrInvalidConfig)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: corpus miner needs a store", internalerr.ErrInvalidConfig)
	}
	if opts.Workers < 0 || opts.ProgressEvery < 0 || opts.DocumentTimeout < 0 {
		return nil, fmt.Errorf("%w: negative workers, progress or timeout", internalerr.ErrInvalidConfig)
	}

	m := &CorpusMiner{
		decoder:         opts.Decoder,
		miner:           opts.Miner,
		store:           opts.Store,
		logger:          opts.Logger,
		workers:         opts.Workers,
		persistBlobs:    opts.PersistLemmaBlobs,
		defaultLanguage: opts.DefaultLanguage,
		docTimeout:      opts.DocumentTimeout,
		progressEvery:   opts.ProgressEvery,
		maxFailures:     opts.MaxFailures,
	}
	if m.decoder == nil {
		m.decoder = decode.Default()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.workers == 0 {
		m.workers = 1
	}
	if m.maxFailures <= 0 {
		m.maxFailures = DefaultMaxFailures
	}
	return m, nil
}

// Run mines every item of src and persists its artifacts under the item's ref:
// the lemma blob (when enabled), the inverted index and the extracted data.
// Reruns overwrite.
//
// Run returns a non-nil error only when the whole run stops: ctx is cancelled,
// src fails with something other than an *ItemError, or the store reports
// internalerr.ErrStoreUnavailable. The report is filled in either case.
func (m *CorpusMiner) Run(ctx context.Context, src Source) (Report, error) {
	t := newTally(time.Now().UTC(), m.maxFailures)
	m.logger.Info("run started",
		zap.String("run_id", t.report.RunID),
		zap.Int("workers", m.workers),
		zap.Bool("persist_lemma_blobs", m.persistBlobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	var srcErr error
	for {
		if gctx.Err() != nil {
			break
		}
		item, err := src.Next(gctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var itemErr *ItemError
		if errors.As(err, &itemErr) {
			t.seen()
			m.skip(t, itemErr.Ref, StageRead, false, itemErr.Err)
			continue
		}
		if err != nil {
			if gctx.Err() == nil {
				srcErr = fmt.Errorf("read corpus: %w", err)
			}
			break
		}

		t.seen()
		g.Go(func() error {
			return m.process(gctx, t, item)
		})
	}

	runErr := g.Wait()
	if runErr == nil {
		runErr = srcErr
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	report := t.finish(time.Now().UTC())
	if runErr != nil {
		m.logger.Error("run aborted", append(report.fields(), zap.Error(runErr))...)
	} else {
		m.logger.Info("run finished", report.fields()...)
	}
	m.record(context.WithoutCancel(ctx), report)
	return report, runErr
}

// Mine processes a single item outside of a run. Skips are reported as errors.
func (m *CorpusMiner) Mine(ctx context.Context, item Item) (*mining.Result, error) {
	unlock := m.lockRef(item.Ref)
	defer unlock()

	res, _, err := m.mineItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if err := m.persist(ctx, item.Ref, res); err != nil {
		return nil, err
	}
	return res, nil
}

// process runs one item and updates the tally. The returned error aborts the run.
func (m *CorpusMiner) process(ctx context.Context, t *tally, item Item) error {
	unlock := m.lockRef(item.Ref)
	defer unlock()

	res, stage, err := m.mineItem(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.skip(t, item.Ref, stage, errors.Is(err, internalerr.ErrUnsupportedFormat), err)
		return nil
	}

	if err := m.persist(ctx, item.Ref, res); err != nil {
		if errors.Is(err, internalerr.ErrStoreUnavailable) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.skip(t, item.Ref, StagePersist, false, err)
		return nil
	}

	done := t.processed(res.Fallback)
	m.logger.Debug("item processed",
		zap.String("ref", item.Ref),
		zap.String("language", res.Language),
		zap.Bool("fallback", res.Fallback),
		zap.Int("lemmas", len(res.Lemmas)))
	m.progress(t, done)
	return nil
}

func (m *CorpusMiner) mineItem(ctx context.Context, item Item) (*mining.Result, Stage, error) {
	if err := item.Validate(); err != nil {
		return nil, StageRead, err
	}

	text, err := m.decoder.Decode(item.Format, item.Raw)
	if err != nil {
		return nil, StageDecode, err
	}
	text = NormalizeLineEndings(text)

	if m.docTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.docTimeout)
		defer cancel()
	}
	res, err := m.miner.Mine(ctx, text, m.defaultLanguage)
	if err != nil {
		return nil, StageMine, err
	}
	return res, StageMine, nil
}

// persist writes the artifacts of ref. The first failing write stops the rest.
func (m *CorpusMiner) persist(ctx context.Context, ref string, res *mining.Result) error {
	if m.persistBlobs {
		if err := m.store.PutLemmas(ctx, ref, res.Lemmas); err != nil {
			return err
		}
	}
	if err := m.store.PutInvertedIndex(ctx, ref, res.Index); err != nil {
		return err
	}
	return m.store.PutExtractedData(ctx, ref, res.Extracted)
}

func (m *CorpusMiner) skip(t *tally, ref string, stage Stage, unsupported bool, err error) {
	m.logger.Warn("item skipped",
		zap.String("ref", ref),
		zap.String("stage", string(stage)),
		zap.Error(err))
	done := t.skipped(ref, stage, unsupported, err)
	m.progress(t, done)
}

func (m *CorpusMiner) progress(t *tally, done int) {
	if m.progressEvery <= 0 || done%m.progressEvery != 0 {
		return
	}
	t.mu.Lock()
	seen, processed, skipped := t.report.Seen, t.report.Processed, t.report.Skipped
	t.mu.Unlock()
	m.logger.Info("progress",
		zap.Int("done", done),
		zap.Int("seen", seen),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped))
}

func (m *CorpusMiner) record(ctx context.Context, report Report) {
	rec, ok := m.store.(store.RunRecorder)
	if !ok {
		return
	}
	raw, err := report.JSON()
	if err != nil {
		m.logger.Warn("encode run report", zap.Error(err))
		return
	}
	err = rec.RecordRun(ctx, store.RunRecord{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Processed:  report.Processed,
		Skipped:    report.Skipped,
		Report:     raw,
	})
	if err != nil {
		m.logger.Warn("record run", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// Prune deletes every stored artifact whose ref is not in keep and returns the
// deleted refs, sorted. Refs are deleted under the same lock as mining.
func (m *CorpusMiner) Prune(ctx context.Context, keep []string) ([]string, error) {
	live := make(map[string]bool, len(keep))
	for _, ref := range keep {
		live[ref] = true
	}

	stale := make(map[string]bool)
	for _, kind := range store.Kinds {
		refs, err := m.store.Refs(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		for _, ref := range refs {
			if !live[ref] {
				stale[ref] = true
			}
		}
	}

	removed := make([]string, 0, len(stale))
	for ref := range stale {
		removed = append(removed, ref)
	}
	sort.Strings(removed)

	for i, ref := range removed {
		unlock := m.lockRef(ref)
		err := m.store.Delete(ctx, ref)
		unlock()
		if err != nil {
			return removed[:i], fmt.Errorf("delete %s: %w", ref, err)
		}
		m.logger.Debug("stale artifacts deleted", zap.String("ref", ref))
	}
	if len(removed) > 0 {
		m.logger.Info("pruned stale refs", zap.Int("refs", len(removed)))
	}
	return removed, nil
}

// lockRef serializes items sharing a ref.
func (m *CorpusMiner) lockRef(ref string) func() {
	h := fnv.New32a()
	h.Write([]byte(ref))
	mu := &m.stripes[h.Sum32()%refStripes]
	mu.Lock()
	return mu.Unlock
}

var lineEndings = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// NormalizeLineEndings replaces CRLF, LF and CR with a single space.
// Line breaks are replaced, not stripped: "end\nstart" mines as two words
// rather than "endstart".
func NormalizeLineEndings(text string) string {
	return lineEndings.Replace(text)
}
