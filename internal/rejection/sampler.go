// Package rejection verifies speculative-decoding drafts against the target
// model. Each call accepts a prefix of every request's draft, substitutes a
// corrected token at the first rejection and appends a bonus token when the
// whole draft is accepted.
package rejection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samcharles93/specdec/internal/backend"
	"github.com/samcharles93/specdec/internal/draft"
	"github.com/samcharles93/specdec/internal/logger"
	"github.com/samcharles93/specdec/internal/metrics"
	"github.com/samcharles93/specdec/internal/probs"
	"github.com/samcharles93/specdec/internal/rng"
	"github.com/samcharles93/specdec/internal/tensor"
)

// Sampler is safe for concurrent use. Calls share one staging buffer and
// are serialised while their draft matrices are in flight.
type Sampler struct {
	cfg          Config
	be           backend.Backend
	materializer *draft.Materializer
	defaultRNG   *rng.Locked
	log          logger.Logger
	metrics      *metrics.Recorder

	statsMu sync.Mutex
	stats   Stats
}

// Stats accumulates outcomes across calls.
type Stats struct {
	Batches         uint64
	Requests        uint64
	DraftTokens     uint64
	AcceptedTokens  uint64
	RecoveredTokens uint64
	BonusTokens     uint64
}

// AcceptanceRate returns accepted / drafted, or 0 before any draft.
func (s Stats) AcceptanceRate() float64 {
	if s.DraftTokens == 0 {
		return 0
	}
	return float64(s.AcceptedTokens) / float64(s.DraftTokens)
}

// New builds a Sampler and allocates its staging buffer.
func New(cfg Config, opts ...Option) (*Sampler, error) {
	cfg = cfg.withDefaults()
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Default()
	}
	be := o.backend
	if be == nil {
		var err error
		be, err = backend.New(cfg.Backend, cfg.Workers)
		if err != nil {
			return nil, err
		}
	}
	mat, err := draft.NewMaterializer(be, cfg.MaxNumTokens)
	if err != nil {
		return nil, err
	}
	log := o.log.With("component", "rejection")
	log.Debug("sampler ready",
		"backend", be.Name(),
		"workers", be.Workers(),
		"max_num_tokens", mat.Capacity(),
		"pinned", mat.Pinned(),
	)
	return &Sampler{
		cfg:          cfg,
		be:           be,
		materializer: mat,
		defaultRNG:   rng.NewDefault(cfg.Seed),
		log:          log,
		metrics:      o.metrics,
	}, nil
}

// Close releases the staging buffer.
func (s *Sampler) Close() error {
	return s.materializer.Close()
}

// Config returns the resolved configuration.
func (s *Sampler) Config() Config {
	return s.cfg
}

// Backend returns the execution backend.
func (s *Sampler) Backend() backend.Backend {
	return s.be
}

// Stats returns a snapshot of the cumulative counters.
func (s *Sampler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Forward verifies one batch. Structural problems fail the whole call
// before any kernel runs; per-row accept/reject decisions are never
// errors.
func (s *Sampler) Forward(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	batch, err := s.materializer.Materialize(in.DraftTokenIDs)
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			s.metrics.CapacityExceeded()
			s.log.Warn("draft batch refused", "error", err, "capacity", s.materializer.Capacity())
		}
		return nil, err
	}

	// runs while the draft matrix is copied
	target := probs.ComputeTarget(s.be, in.TargetLogits, in.VocabSize, in.Metadata.Temperature, in.CuNumDraftTokens, batch.MaxSpecLen)
	var draftProbs *tensor.Probs
	if in.DraftProbs != nil {
		p := probs.Pad(s.be, in.DraftProbs, in.VocabSize, in.CuNumDraftTokens, batch.MaxSpecLen)
		draftProbs = &p
	}

	draftTokens := batch.Wait()
	out := s.rejectionSample(draftTokens, batch.NumDraftTokens, draftProbs, target, in.BonusTokenIDs, in.Metadata)
	s.record(out, batch.MaxSpecLen, time.Since(start))
	return out, nil
}

func (s *Sampler) rejectionSample(
	draftTokens tensor.Tokens,
	numDraft []int,
	draftProbs *tensor.Probs,
	target tensor.Probs,
	bonus []int64,
	md Metadata,
) *Output {
	batchSize, maxSpecLen := draftTokens.R, draftTokens.C
	out := &Output{
		TokenIDs: tensor.NewTokens(batchSize, maxSpecLen+1),
		Rows:     make([]RowResult, batchSize),
	}
	isGreedy := make([]bool, batchSize)
	isRandom := make([]bool, batchSize)
	for i := range batchSize {
		isGreedy[i] = md.IsGreedy(i)
		isRandom[i] = !isGreedy[i]
		out.Rows[i].Greedy = isGreedy[i]
		out.Rows[i].Drafted = numDraft[i]
	}

	if !md.AllRandom {
		k := &greedyKernel{
			draftTokens:  draftTokens,
			targetArgMax: probs.ArgMax(s.be, target, numDraft, isGreedy),
			bonus:        bonus,
			isGreedy:     isGreedy,
		}
		s.be.Launch(batchSize, func(i int) {
			k.run(i, out.TokenIDs.Row(i), &out.Rows[i])
		})
		if md.AllGreedy {
			return out
		}
	}

	draws := drawRandom(s.defaultRNG, md.Generators, numDraft, isRandom, maxSpecLen, target.V)
	residual := probs.ComputeResidual(s.be, target, draftProbs, draftTokens, numDraft, isRandom, s.cfg.ResidualFloor)
	k := &randomKernel{
		draftTokens: draftTokens,
		draftProbs:  draftProbs,
		target:      target,
		uniform:     draws.uniform,
		recovery:    &recoverySampler{residual: residual, exponential: draws.exponential},
		bonus:       bonus,
		isGreedy:    isGreedy,
	}
	s.be.Launch(batchSize, func(i int) {
		k.run(i, out.TokenIDs.Row(i), &out.Rows[i])
	})
	return out
}

func (s *Sampler) record(out *Output, maxSpecLen int, d time.Duration) {
	rows := make([]metrics.Row, len(out.Rows))
	var delta Stats
	delta.Batches = 1
	greedy := 0
	for i, r := range out.Rows {
		mode := metrics.ModeRandom
		if r.Greedy {
			mode = metrics.ModeGreedy
			greedy++
		}
		rows[i] = metrics.Row{
			Mode:     mode,
			Drafted:  r.Drafted,
			Accepted: r.Accepted,
			Rejected: r.Rejected,
			Bonus:    r.Bonus,
		}
		delta.Requests++
		delta.DraftTokens += uint64(r.Drafted)
		delta.AcceptedTokens += uint64(r.Accepted)
		if r.Rejected {
			delta.RecoveredTokens++
		}
		if r.Bonus {
			delta.BonusTokens++
		}
	}
	s.metrics.ObserveBatch(rows, d)

	s.statsMu.Lock()
	s.stats.Batches += delta.Batches
	s.stats.Requests += delta.Requests
	s.stats.DraftTokens += delta.DraftTokens
	s.stats.AcceptedTokens += delta.AcceptedTokens
	s.stats.RecoveredTokens += delta.RecoveredTokens
	s.stats.BonusTokens += delta.BonusTokens
	s.statsMu.Unlock()

	s.log.Debug("verified batch",
		"batch_size", len(out.Rows),
		"max_spec_len", maxSpecLen,
		"greedy_rows", greedy,
		"random_rows", len(out.Rows)-greedy,
		"drafted", delta.DraftTokens,
		"accepted", delta.AcceptedTokens,
		"duration", d,
	)
}
