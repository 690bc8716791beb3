package probs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/samcharles93/specdec/internal/backend"
	"github.com/samcharles93/specdec/internal/tensor"
)

func f64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

func softmaxRef(logits []float32, temp float64) []float64 {
	out := make([]float64, len(logits))
	maxv := math.Inf(-1)
	for _, v := range logits {
		maxv = math.Max(maxv, float64(v)/temp)
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v)/temp - maxv)
		sum += out[i]
	}
	floats.Scale(1/sum, out)
	return out
}

func TestComputeTargetGreedyAndRandom(t *testing.T) {
	be := backend.NewCPU(4)
	const vocab = 5 // not a power of two
	// request 0: 2 positions, greedy; request 1: 1 position, random
	logits := []float32{
		1, 2, 3, 4, 5,
		5, 4, 3, 2, 1,
		0.5, -1, 2, 0, 1,
	}
	temps := []float32{GreedyTemperature, 0.7}
	cu := []int{2, 3}

	out := ComputeTarget(be, logits, vocab, temps, cu, 2)
	require.Equal(t, 2, out.B)
	require.Equal(t, 2, out.S)
	require.Equal(t, vocab, out.V)

	require.Equal(t, logits[0:5], out.Row(0, 0))
	require.Equal(t, logits[5:10], out.Row(0, 1))

	want := softmaxRef(logits[10:15], 0.7)
	got := f64(out.Row(1, 0))
	require.True(t, floats.EqualApprox(want, got, 1e-6), "got %v want %v", got, want)
	require.InDelta(t, 1.0, floats.Sum(got), 1e-6)

	// out-of-range position untouched
	for _, v := range out.Row(1, 1) {
		require.Zero(t, v)
	}
}

func TestComputeTargetEmptyBatchRows(t *testing.T) {
	be := backend.NewCPU(2)
	out := ComputeTarget(be, nil, 4, []float32{1, 1}, []int{0, 0}, 0)
	require.Equal(t, 2, out.B)
	require.Empty(t, out.Data)
}

func TestComputeTargetLargeLogitsStable(t *testing.T) {
	be := backend.NewCPU(1)
	logits := []float32{1000, 1001, 999}
	out := ComputeTarget(be, logits, 3, []float32{1}, []int{1}, 1)
	row := f64(out.Row(0, 0))
	for _, v := range row {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	require.InDelta(t, 1.0, floats.Sum(row), 1e-6)
	require.Equal(t, 1, floats.MaxIdx(row))
}

func TestPad(t *testing.T) {
	be := backend.NewCPU(2)
	flat := []float32{1, 2, 3, 4, 5, 6}
	out := Pad(be, flat, 2, []int{1, 1, 3}, 2)
	require.Equal(t, []float32{1, 2, 0, 0, 0, 0, 0, 0, 3, 4, 5, 6}, out.Data)
}

func TestArgMaxOnlySelectedRows(t *testing.T) {
	be := backend.NewCPU(2)
	target := tensor.NewProbsFromData(2, 2, 3, []float32{
		0, 9, 1, 7, 0, 0,
		5, 0, 0, 0, 0, 5,
	})
	out := ArgMax(be, target, []int{2, 2}, []bool{true, false})
	p := tensor.PlaceholderTokenID
	require.Equal(t, []int64{1, 0, p, p}, out.Data)

	short := ArgMax(be, target, []int{1, 2}, []bool{true, true})
	require.Equal(t, []int64{1, p, 0, 2}, short.Data)
}

func TestResidualNgramZeroesDraftToken(t *testing.T) {
	be := backend.NewCPU(2)
	target := tensor.NewProbsFromData(1, 2, 4, []float32{
		0.1, 0.2, 0.3, 0.4,
		0.25, 0.25, 0.25, 0.25,
	})
	tokens := tensor.NewTokensFromData(1, 2, []int64{3, 1})
	res := ComputeResidual(be, target, nil, tokens, []int{2}, []bool{true}, tensor.SmallestNormalFloat32)

	row0 := f64(res.Row(0, 0))
	require.Zero(t, row0[3])
	require.True(t, floats.EqualApprox([]float64{1.0 / 6, 2.0 / 6, 3.0 / 6, 0}, row0, 1e-6), "%v", row0)
	row1 := f64(res.Row(0, 1))
	require.Zero(t, row1[1])
	require.InDelta(t, 1.0, floats.Sum(row1), 1e-6)
}

func TestResidualNgramClampsPlaceholder(t *testing.T) {
	be := backend.NewCPU(1)
	target := tensor.NewProbsFromData(1, 1, 3, []float32{0.2, 0.3, 0.5})
	tokens := tensor.NewTokensFromData(1, 1, []int64{tensor.PlaceholderTokenID})
	res := ComputeResidual(be, target, nil, tokens, []int{1}, []bool{true}, tensor.SmallestNormalFloat32)
	require.Zero(t, res.Row(0, 0)[0])
	require.InDelta(t, 1.0, tensor.Sum(res.Row(0, 0)), 1e-6)
}

func TestResidualWithDraftProbs(t *testing.T) {
	be := backend.NewCPU(2)
	target := tensor.NewProbsFromData(1, 1, 4, []float32{0.5, 0.2, 0.2, 0.1})
	draft := tensor.NewProbsFromData(1, 1, 4, []float32{0.1, 0.6, 0.2, 0.1})
	tokens := tensor.NewTokensFromData(1, 1, []int64{1})
	res := ComputeResidual(be, target, &draft, tokens, []int{1}, []bool{true}, tensor.SmallestNormalFloat32)
	row := f64(res.Row(0, 0))
	require.InDelta(t, 1.0, floats.Sum(row), 1e-6)
	require.InDelta(t, 1.0, row[0], 1e-6)
	for _, v := range row[1:] {
		require.Greater(t, v, 0.0, "floor keeps every entry positive")
	}
}

func TestResidualFloorIsConfigurable(t *testing.T) {
	be := backend.NewCPU(1)
	target := tensor.NewProbsFromData(1, 1, 2, []float32{0.5, 0.5})
	draft := tensor.NewProbsFromData(1, 1, 2, []float32{0.5, 0.5})
	tokens := tensor.NewTokensFromData(1, 1, []int64{0})
	res := ComputeResidual(be, target, &draft, tokens, []int{1}, []bool{true}, 0.25)
	require.InDeltaSlice(t, []float64{0.5, 0.5}, f64(res.Row(0, 0)), 1e-6)
}

func TestResidualSkipsExcludedRowsAndPadding(t *testing.T) {
	be := backend.NewCPU(2)
	target := tensor.NewProbs(2, 2, 3)
	for i := range target.Data {
		target.Data[i] = 1.0 / 3
	}
	tokens := tensor.NewTokensFromData(2, 2, []int64{0, tensor.PlaceholderTokenID, 1, 2})
	res := ComputeResidual(be, target, nil, tokens, []int{1, 2}, []bool{true, false}, tensor.SmallestNormalFloat32)
	require.InDelta(t, 1.0, tensor.Sum(res.Row(0, 0)), 1e-6)
	require.Zero(t, tensor.Sum(res.Row(0, 1)))
	require.Zero(t, tensor.Sum(res.Row(1, 0)))
	require.Zero(t, tensor.Sum(res.Row(1, 1)))
}

func TestResidualRowsSumToOne(t *testing.T) {
	be := backend.NewCPU(4)
	const batch, spec, vocab = 3, 4, 37
	logits := tensor.NewProbs(batch, spec, vocab)
	tensor.FillRand(logits, 3, 4)
	draftLogits := tensor.NewProbs(batch, spec, vocab)
	tensor.FillRand(draftLogits, 5, 4)
	cu := []int{spec, 2 * spec, 3 * spec}
	temps := []float32{1, 0.5, 2}
	target := ComputeTarget(be, logits.Data, vocab, temps, cu, spec)
	draftProbs := ComputeTarget(be, draftLogits.Data, vocab, temps, cu, spec)
	tokens := tensor.NewTokens(batch, spec)
	for b := range batch {
		for s := range spec {
			tokens.Row(b)[s] = int64(tensor.ArgMax(draftProbs.Row(b, s)))
		}
	}
	numDraft := []int{spec, spec, spec}
	include := []bool{true, true, true}

	for _, dp := range []*tensor.Probs{nil, &draftProbs} {
		res := ComputeResidual(be, target, dp, tokens, numDraft, include, tensor.SmallestNormalFloat32)
		for b := range batch {
			for s := range spec {
				row := f64(res.Row(b, s))
				require.InDelta(t, 1.0, floats.Sum(row), 1e-5)
				require.GreaterOrEqual(t, floats.Min(row), 0.0)
			}
		}
	}
}

func TestNormalizeZeroMassBecomesUniform(t *testing.T) {
	p := []float32{0, 0, 0, 0}
	Normalize(p)
	require.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, p)
}
