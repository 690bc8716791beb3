package rejection

import (
	"github.com/samcharles93/specdec/internal/rng"
	"github.com/samcharles93/specdec/internal/tensor"
)

// randomKernel verifies random-sampling rows with the ratio test
// target_prob / draft_prob >= u.
type randomKernel struct {
	draftTokens tensor.Tokens
	// draftProbs is nil for n-gram drafting.
	draftProbs *tensor.Probs
	target     tensor.Probs
	uniform    []float32 // [batch_size, max_spec_len]
	recovery   *recoverySampler
	bonus      []int64
	isGreedy   []bool
}

func (k *randomKernel) run(req int, out []int64, res *RowResult) {
	if k.isGreedy[req] {
		return
	}
	maxSpecLen := k.draftTokens.C
	draft := k.draftTokens.Row(req)

	rejected := false
	numGenerated := 0
	for pos, id := range draft {
		if id == PlaceholderTokenID {
			break
		}
		draftProb := float32(1)
		if k.draftProbs != nil {
			draftProb = k.draftProbs.Row(req, pos)[id]
		}
		targetProb := k.target.Row(req, pos)[id]
		u := k.uniform[req*maxSpecLen+pos]
		if targetProb/draftProb >= u {
			out[pos] = id
			numGenerated++
			continue
		}
		out[pos] = k.recovery.recover(req, pos)
		numGenerated++
		rejected = true
		break
	}

	res.Rejected = rejected
	res.Accepted = numGenerated
	if rejected {
		res.Accepted--
		return
	}
	out[numGenerated] = k.bonus[req]
	res.Bonus = true
}

// randomDraws holds the uniform thresholds and exponential race noise of
// one call.
type randomDraws struct {
	uniform     []float32 // [batch_size, max_spec_len]
	exponential []float32 // [batch_size, vocab_size]
}

// drawRandom fills the draws of every included request with a non-empty
// draft. A request bound to a generator consumes exactly n_i uniforms and
// then vocab_size exponentials from it; the rest share def.
func drawRandom(def *rng.Locked, gens rng.Generators, numDraft []int, include []bool, maxSpecLen, vocab int) randomDraws {
	batchSize := len(numDraft)
	d := randomDraws{
		uniform:     make([]float32, batchSize*maxSpecLen),
		exponential: make([]float32, batchSize*vocab),
	}
	shared, unlock := def.Lock()
	defer unlock()

	source := func(i int) rng.Source {
		if g, ok := gens[i]; ok {
			return g
		}
		return shared
	}
	for i, n := range numDraft {
		if include[i] && n > 0 {
			rng.FillUniform(source(i), d.uniform[i*maxSpecLen:i*maxSpecLen+n])
		}
	}
	for i, n := range numDraft {
		if include[i] && n > 0 {
			rng.FillExponential(source(i), d.exponential[i*vocab:(i+1)*vocab])
		}
	}
	return d
}
