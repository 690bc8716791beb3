package rejection

import "github.com/samcharles93/specdec/internal/tensor"

// RowResult summarises how one request was verified.
type RowResult struct {
	Greedy bool
	// Drafted is the request's draft length.
	Drafted int
	// Accepted counts draft tokens kept as proposed.
	Accepted int
	// Rejected is set when a replacement token was written.
	Rejected bool
	// Bonus is set when the bonus token was appended.
	Bonus bool
}

// Output is the result of one verification call.
type Output struct {
	// TokenIDs is [batch_size, max_spec_len+1], placeholder padded.
	TokenIDs tensor.Tokens
	Rows     []RowResult
}

// Parse returns the ragged accepted token lists.
func (o *Output) Parse() [][]int64 {
	return ParseOutput(o.TokenIDs)
}

// ParseOutput reads each row up to its first placeholder.
func ParseOutput(tokens tensor.Tokens) [][]int64 {
	outputs := make([][]int64, tokens.R)
	for i := range tokens.R {
		row := tokens.Row(i)
		outputs[i] = []int64{}
		for _, id := range row {
			if id == PlaceholderTokenID {
				break
			}
			outputs[i] = append(outputs[i], id)
		}
	}
	return outputs
}
