package rejection

import "github.com/samcharles93/specdec/internal/tensor"

// greedyKernel verifies greedy rows against the target arg-max.
type greedyKernel struct {
	draftTokens  tensor.Tokens
	targetArgMax tensor.Tokens
	bonus        []int64
	isGreedy     []bool
}

// run verifies row req and writes it into out, a max_spec_len+1 wide row.
// Non-greedy rows are left untouched.
func (k *greedyKernel) run(req int, out []int64, res *RowResult) {
	if !k.isGreedy[req] {
		return
	}
	draft := k.draftTokens.Row(req)
	argmax := k.targetArgMax.Row(req)

	rejected := false
	numGenerated := 0
	for pos, id := range draft {
		if id == PlaceholderTokenID {
			break
		}
		if id == argmax[pos] {
			out[pos] = id
			numGenerated++
			continue
		}
		out[pos] = argmax[pos]
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
