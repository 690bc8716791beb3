package tensor

import "math"

// Softmax applies the softmax function to x in place. The maximum is
// subtracted before exponentiating; -Inf entries become exactly zero.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}

// Sum returns the float64 sum of x.
func Sum(x []float32) float64 {
	var s float64
	for _, v := range x {
		s += float64(v)
	}
	return s
}

// ArgMax returns the index of the maximum value in x. Ties resolve to the
// lowest index and NaN entries never win. It panics on an empty slice.
func ArgMax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV || (bestV != bestV && x[i] == x[i]) {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// NextPow2 returns the smallest power of two >= n (1 for n <= 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// SmallestNormalFloat32 is the smallest positive normal float32
// (1.1754944e-38).
var SmallestNormalFloat32 = math.Float32frombits(0x00800000)
