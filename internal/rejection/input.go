package rejection

import (
	"fmt"
	"math"

	"github.com/samcharles93/specdec/internal/probs"
	"github.com/samcharles93/specdec/internal/rng"
	"github.com/samcharles93/specdec/internal/tensor"
)

const (
	// PlaceholderTokenID pads draft and output matrices.
	PlaceholderTokenID = tensor.PlaceholderTokenID
	// GreedyTemperature marks a greedy request in Metadata.Temperature.
	GreedyTemperature = probs.GreedyTemperature
)

// Metadata carries per-request sampling parameters.
type Metadata struct {
	// Temperature is GreedyTemperature for greedy requests, > 0 otherwise.
	Temperature []float32
	// Generators binds reproducible sources to request indices.
	Generators rng.Generators
	// AllGreedy and AllRandom let a uniform batch skip the unused path.
	AllGreedy bool
	AllRandom bool
}

// NewMetadata derives the AllGreedy/AllRandom flags from temperatures.
func NewMetadata(temperature []float32, generators rng.Generators) Metadata {
	md := Metadata{
		Temperature: temperature,
		Generators:  generators,
		AllGreedy:   len(temperature) > 0,
		AllRandom:   len(temperature) > 0,
	}
	for _, t := range temperature {
		if t == GreedyTemperature {
			md.AllRandom = false
		} else {
			md.AllGreedy = false
		}
	}
	return md
}

// IsGreedy reports whether request i samples greedily.
func (m Metadata) IsGreedy(i int) bool {
	return m.Temperature[i] == GreedyTemperature
}

// Input is one verification call.
type Input struct {
	// DraftTokenIDs holds each request's proposed tokens.
	DraftTokenIDs [][]int64
	// CuNumDraftTokens[i] is the total draft length of requests 0..i.
	CuNumDraftTokens []int
	// TargetLogits is [num_tokens, VocabSize], contiguous per request in
	// CuNumDraftTokens order.
	TargetLogits []float32
	// DraftProbs has the same layout as TargetLogits. nil selects n-gram
	// drafting, where the draft puts probability one on its token.
	DraftProbs []float32
	VocabSize  int
	// BonusTokenIDs holds the token appended to a fully accepted request.
	BonusTokenIDs []int64
	Metadata      Metadata
}

// CumulativeOffsets builds the offset table for drafts.
func CumulativeOffsets(drafts [][]int64) []int {
	cu := make([]int, len(drafts))
	total := 0
	for i, ids := range drafts {
		total += len(ids)
		cu[i] = total
	}
	return cu
}

func (in *Input) validate() error {
	batchSize := len(in.DraftTokenIDs)
	if batchSize == 0 {
		return ErrEmptyBatch
	}
	if in.VocabSize <= 0 {
		return fmt.Errorf("%w: vocab size %d", ErrShapeMismatch, in.VocabSize)
	}
	if len(in.CuNumDraftTokens) != batchSize {
		return shapeError("cu_num_draft_tokens", batchSize, len(in.CuNumDraftTokens))
	}
	if len(in.BonusTokenIDs) != batchSize {
		return shapeError("bonus_token_ids", batchSize, len(in.BonusTokenIDs))
	}
	if len(in.Metadata.Temperature) != batchSize {
		return shapeError("temperature", batchSize, len(in.Metadata.Temperature))
	}

	prev := 0
	for i, ids := range in.DraftTokenIDs {
		cu := in.CuNumDraftTokens[i]
		if cu < prev {
			return fmt.Errorf("%w: cu_num_draft_tokens decreases at request %d", ErrShapeMismatch, i)
		}
		if cu-prev != len(ids) {
			return shapeError(fmt.Sprintf("draft length of request %d", i), cu-prev, len(ids))
		}
		prev = cu
		for pos, id := range ids {
			if id < 0 || id >= int64(in.VocabSize) {
				return fmt.Errorf("%w: request %d position %d has id %d (vocab %d)", ErrInvalidToken, i, pos, id, in.VocabSize)
			}
		}
	}
	numTokens := prev
	if len(in.TargetLogits) != numTokens*in.VocabSize {
		return shapeError("target_logits", numTokens*in.VocabSize, len(in.TargetLogits))
	}
	if in.DraftProbs != nil && len(in.DraftProbs) != numTokens*in.VocabSize {
		return shapeError("draft_probs", numTokens*in.VocabSize, len(in.DraftProbs))
	}

	for i, id := range in.BonusTokenIDs {
		if id < 0 {
			return fmt.Errorf("%w: bonus token of request %d is %d", ErrInvalidToken, i, id)
		}
	}
	return in.Metadata.validate(batchSize)
}

func (m Metadata) validate(batchSize int) error {
	greedy := 0
	for i, t := range m.Temperature {
		switch {
		case t == GreedyTemperature:
			greedy++
		case t > 0 && !math.IsInf(float64(t), 0):
		default:
			return fmt.Errorf("%w: temperature %v of request %d", ErrInvalidMetadata, t, i)
		}
	}
	if m.AllGreedy && greedy != batchSize {
		return fmt.Errorf("%w: all_greedy set with %d random requests", ErrInvalidMetadata, batchSize-greedy)
	}
	if m.AllRandom && greedy != 0 {
		return fmt.Errorf("%w: all_random set with %d greedy requests", ErrInvalidMetadata, greedy)
	}
	for i, src := range m.Generators {
		if i < 0 || i >= batchSize {
			return fmt.Errorf("%w: generator bound to request %d of %d", ErrInvalidMetadata, i, batchSize)
		}
		if src == nil {
			return fmt.Errorf("%w: nil generator for request %d", ErrInvalidMetadata, i)
		}
	}
	return nil
}
