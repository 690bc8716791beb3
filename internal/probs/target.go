// Package probs builds the per-position distributions consumed by the
// verification kernels: target probabilities from raw logits and residual
// distributions used to recover a token after a rejection.
//
// Every array produced here uses the padded [batch, max_spec_len, vocab]
// layout. Flat inputs are delimited by a cumulative offset table where
// cu[i] is the total number of draft positions of requests 0..i.
package probs

import (
	"math"
	"sync"

	"github.com/samcharles93/specdec/internal/backend"
	"github.com/samcharles93/specdec/internal/tensor"
)

// GreedyTemperature marks a request that samples greedily. Its rows keep
// raw logits instead of probabilities.
const GreedyTemperature float32 = -1

var negInf = float32(math.Inf(-1))

// SliceBounds returns the [start, end) draft positions of request i.
func SliceBounds(cu []int, i int) (int, int) {
	start := 0
	if i > 0 {
		start = cu[i-1]
	}
	return start, cu[i]
}

// ComputeTarget turns flat [num_tokens, vocab] logits into the padded
// target array. Greedy rows copy logits unchanged; the others get
// softmax(logits / temperature). Positions past a request's draft length
// are skipped and left zero.
//
// The softmax runs over a power-of-two working width; slots past vocab are
// loaded as -Inf and never stored.
func ComputeTarget(be backend.Backend, logits []float32, vocab int, temperature []float32, cu []int, maxSpecLen int) tensor.Probs {
	batchSize := len(temperature)
	if len(cu) != batchSize {
		panic("compute target: offset table length mismatch")
	}
	if batchSize > 0 && len(logits) != cu[batchSize-1]*vocab {
		panic("compute target: logits length mismatch")
	}
	out := tensor.NewProbs(batchSize, maxSpecLen, vocab)
	if maxSpecLen == 0 || vocab == 0 {
		return out
	}

	width := tensor.NextPow2(vocab)
	scratch := sync.Pool{New: func() any {
		buf := make([]float32, width)
		return &buf
	}}

	be.Launch(batchSize*maxSpecLen, func(k int) {
		req, pos := k/maxSpecLen, k%maxSpecLen
		start, end := SliceBounds(cu, req)
		if pos >= end-start {
			return
		}
		off := (start + pos) * vocab
		bufp := scratch.Get().(*[]float32)
		targetRow(out.Row(req, pos), logits[off:off+vocab], temperature[req], *bufp)
		scratch.Put(bufp)
	})
	return out
}

func targetRow(dst, logits []float32, temp float32, buf []float32) {
	vocab := len(dst)
	for j := range buf {
		if j < vocab {
			buf[j] = logits[j]
		} else {
			buf[j] = negInf
		}
	}
	if temp != GreedyTemperature {
		for j := range vocab {
			buf[j] /= temp
		}
		tensor.Softmax(buf)
	}
	copy(dst, buf[:vocab])
}

// Pad copies flat [num_tokens, vocab] rows into a padded
// [batch, maxSpecLen, vocab] array.
func Pad(be backend.Backend, flat []float32, vocab int, cu []int, maxSpecLen int) tensor.Probs {
	batchSize := len(cu)
	if batchSize > 0 && len(flat) != cu[batchSize-1]*vocab {
		panic("pad: data length mismatch")
	}
	out := tensor.NewProbs(batchSize, maxSpecLen, vocab)
	be.Launch(batchSize, func(req int) {
		start, end := SliceBounds(cu, req)
		for pos := range end - start {
			off := (start + pos) * vocab
			copy(out.Row(req, pos), flat[off:off+vocab])
		}
	})
	return out
}

// ArgMax returns the [batch, maxSpecLen] arg-max token of every in-range
// position of the rows selected by include. Other cells hold the
// placeholder.
func ArgMax(be backend.Backend, target tensor.Probs, numDraft []int, include []bool) tensor.Tokens {
	out := tensor.NewTokens(target.B, target.S)
	if target.V == 0 {
		return out
	}
	be.Launch(target.B, func(req int) {
		if !include[req] {
			return
		}
		row := out.Row(req)
		for pos := range numDraft[req] {
			row[pos] = int64(tensor.ArgMax(target.Row(req, pos)))
		}
	})
	return out
}
