package tensor

import "math/rand/v2"

// PlaceholderTokenID marks unused cells of a token matrix. It never collides
// with a vocabulary id because real ids are non-negative.
const PlaceholderTokenID int64 = -1

// Tokens is a dense row-major matrix of token ids.
//
// R and C are the number of rows and columns. Data holds R*C ids; row i
// starts at i*C.
type Tokens struct {
	R, C int
	Data []int64
}

// NewTokens allocates an r x c token matrix filled with PlaceholderTokenID.
func NewTokens(r, c int) Tokens {
	if r < 0 || c < 0 {
		panic("negative dimension for token matrix")
	}
	t := Tokens{R: r, C: c, Data: make([]int64, r*c)}
	t.Fill(PlaceholderTokenID)
	return t
}

// NewTokensFromData wraps existing data. It checks that the data length
// matches r*c.
func NewTokensFromData(r, c int, data []int64) Tokens {
	if r < 0 || c < 0 {
		panic("negative dimension for token matrix")
	}
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return Tokens{R: r, C: c, Data: data}
}

// Row returns a view of the i-th row. Writes through the view update the
// matrix.
func (t Tokens) Row(i int) []int64 {
	if i < 0 || i >= t.R {
		panic("row index out of range")
	}
	start := i * t.C
	return t.Data[start : start+t.C]
}

// Fill sets every cell to v.
func (t Tokens) Fill(v int64) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

// Probs is a dense [B, S, V] float32 array laid out row-major: one
// V-wide row per (batch, position) pair. It is used for logits, target
// probabilities, draft probabilities and residual distributions alike.
type Probs struct {
	B, S, V int
	Data    []float32
}

// NewProbs allocates a zeroed [b, s, v] array.
func NewProbs(b, s, v int) Probs {
	if b < 0 || s < 0 || v < 0 {
		panic("negative dimension for probability array")
	}
	return Probs{B: b, S: s, V: v, Data: make([]float32, b*s*v)}
}

// NewProbsFromData wraps existing data. It checks that the data length
// matches b*s*v.
func NewProbsFromData(b, s, v int, data []float32) Probs {
	if b < 0 || s < 0 || v < 0 {
		panic("negative dimension for probability array")
	}
	if b*s*v != len(data) {
		panic("data length mismatch")
	}
	return Probs{B: b, S: s, V: v, Data: data}
}

// Row returns a view of the vocabulary row for (batch b, position s).
func (p Probs) Row(b, s int) []float32 {
	if b < 0 || b >= p.B || s < 0 || s >= p.S {
		panic("row index out of range")
	}
	start := (b*p.S + s) * p.V
	return p.Data[start : start+p.V]
}

// Clone returns a deep copy.
func (p Probs) Clone() Probs {
	out := p
	out.Data = append([]float32(nil), p.Data...)
	return out
}

// FillRand fills the array with reproducible pseudo-random values in
// (-scale, scale). The same seed always produces the same array.
func FillRand(p Probs, seed uint64, scale float32) {
	rng := rand.New(rand.NewPCG(seed, seed+0x9e3779b97f4a7c15))
	for i := range p.Data {
		p.Data[i] = (rng.Float32()*2 - 1) * scale
	}
}
