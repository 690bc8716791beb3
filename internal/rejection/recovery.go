package rejection

import "github.com/samcharles93/specdec/internal/tensor"

// recoverySampler draws replacement tokens from residual distributions with
// an exponential race: argmax(residual / q) over one Exponential(1) vector
// q per request is a sample from the residual.
type recoverySampler struct {
	residual    tensor.Probs
	exponential []float32 // [batch_size, vocab_size]
}

// recover returns request req's replacement token for the rejected
// position pos. It is called at most once per request.
func (r *recoverySampler) recover(req, pos int) int64 {
	vocab := r.residual.V
	q := r.exponential[req*vocab : (req+1)*vocab]
	best := 0
	bestV := float32(-1)
	for v, p := range r.residual.Row(req, pos) {
		if x := p / q[v]; x > bestV {
			best = v
			bestV = x
		}
	}
	return int64(best)
}
