package batch

import (
	"math"

	"github.com/samcharles93/specdec/internal/rng"
	"github.com/samcharles93/specdec/internal/tensor"
)

// SyntheticConfig shapes a generated batch.
type SyntheticConfig struct {
	BatchSize int
	SpecLen   int
	VocabSize int
	// GreedyFraction of requests sample greedily.
	GreedyFraction float64
	// DraftProbs attaches draft probabilities; otherwise the batch is
	// n-gram drafted.
	DraftProbs bool
	// VariableLength draws each draft length from [0, SpecLen].
	VariableLength bool
	// Seeded gives every request its own seed.
	Seeded bool
	Seed   uint64
}

// Synthetic generates a batch whose drafts are sampled from a perturbed
// copy of the target distribution, so acceptance rates look like those of
// a reasonable draft model.
func Synthetic(cfg SyntheticConfig) *File {
	r := rng.New(cfg.Seed)
	f := &File{
		VocabSize: cfg.VocabSize,
		Requests:  make([]Request, cfg.BatchSize),
	}
	logits := make([]float32, cfg.VocabSize)
	q := make([]float32, cfg.VocabSize)
	for i := range f.Requests {
		req := &f.Requests[i]
		n := cfg.SpecLen
		if cfg.VariableLength {
			n = r.IntN(cfg.SpecLen + 1)
		}
		req.DraftTokenIDs = make([]int64, 0, n)
		req.BonusTokenID = int64(r.IntN(cfg.VocabSize))
		if r.Float64() >= cfg.GreedyFraction {
			req.Temperature = 0.5 + r.Float32()
		}
		if cfg.Seeded {
			seed := r.Uint64()
			req.Seed = &seed
		}
		for range n {
			for v := range logits {
				logits[v] = float32(r.NormFloat64() * 2)
				q[v] = logits[v] + float32(r.NormFloat64())
			}
			tensor.Softmax(q)
			req.DraftTokenIDs = append(req.DraftTokenIDs, int64(sample(q, r.Float32())))
			req.Logits = append(req.Logits, append([]float32(nil), logits...))
			if cfg.DraftProbs {
				req.DraftProbs = append(req.DraftProbs, append([]float32(nil), q...))
			}
		}
		if n == 0 {
			req.Logits = [][]float32{}
			if cfg.DraftProbs {
				req.DraftProbs = [][]float32{}
			}
		}
	}
	return f
}

// sample inverts the CDF of p at u.
func sample(p []float32, u float32) int {
	acc := float32(0)
	for i, v := range p {
		acc += v
		if u < acc {
			return i
		}
	}
	// rounding left u above the total mass
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] > 0 && !math.IsNaN(float64(p[i])) {
			return i
		}
	}
	return len(p) - 1
}
