package probs

import (
	"github.com/samcharles93/specdec/internal/backend"
	"github.com/samcharles93/specdec/internal/tensor"
)

// ComputeResidual builds the recovery distribution for every in-range
// position of the rows selected by include.
//
// With draft == nil (n-gram drafting) the target row is copied and the
// drafted token's entry zeroed. Otherwise each entry is
// max(target-draft, floor). Rows are then renormalised to sum to one; a
// row with no mass left becomes uniform.
func ComputeResidual(be backend.Backend, target tensor.Probs, draft *tensor.Probs, draftTokens tensor.Tokens, numDraft []int, include []bool, floor float32) tensor.Probs {
	if draft != nil && (draft.B != target.B || draft.S != target.S || draft.V != target.V) {
		panic("compute residual: draft shape mismatch")
	}
	out := tensor.NewProbs(target.B, target.S, target.V)
	if target.S == 0 || target.V == 0 {
		return out
	}
	vocab := target.V
	be.Launch(target.B*target.S, func(k int) {
		req, pos := k/target.S, k%target.S
		if !include[req] || pos >= numDraft[req] {
			return
		}
		dst := out.Row(req, pos)
		tgt := target.Row(req, pos)
		if draft == nil {
			copy(dst, tgt)
			id := draftTokens.Row(req)[pos]
			if id == tensor.PlaceholderTokenID || id < 0 || id >= int64(vocab) {
				id = 0
			}
			dst[id] = 0
		} else {
			dr := draft.Row(req, pos)
			for v := range dst {
				d := tgt[v] - dr[v]
				if d < floor {
					d = floor
				}
				dst[v] = d
			}
		}
		Normalize(dst)
	})
	return out
}

// Normalize scales p to sum to one. A row with no positive mass becomes
// uniform.
func Normalize(p []float32) {
	sum := tensor.Sum(p)
	if !(sum > 0) {
		u := float32(1) / float32(len(p))
		for i := range p {
			p[i] = u
		}
		return
	}
	inv := 1 / sum
	for i := range p {
		p[i] = float32(float64(p[i]) * inv)
	}
}
