package batch

import "github.com/samcharles93/specdec/internal/rejection"

// Result is the printable outcome of one verified batch.
type Result struct {
	ID       string          `json:"id" yaml:"id"`
	Outputs  [][]int64       `json:"outputs" yaml:"outputs"`
	Requests []RequestResult `json:"requests" yaml:"requests"`
	Usage    Usage           `json:"usage" yaml:"usage"`
}

type RequestResult struct {
	Greedy   bool `json:"greedy" yaml:"greedy"`
	Drafted  int  `json:"drafted" yaml:"drafted"`
	Accepted int  `json:"accepted" yaml:"accepted"`
	Rejected bool `json:"rejected" yaml:"rejected"`
	Bonus    bool `json:"bonus" yaml:"bonus"`
}

type Usage struct {
	DraftTokens    int     `json:"draft_tokens" yaml:"draft_tokens"`
	AcceptedTokens int     `json:"accepted_tokens" yaml:"accepted_tokens"`
	EmittedTokens  int     `json:"emitted_tokens" yaml:"emitted_tokens"`
	AcceptanceRate float64 `json:"acceptance_rate" yaml:"acceptance_rate"`
}

func NewResult(id string, out *rejection.Output) Result {
	res := Result{
		ID:       id,
		Outputs:  out.Parse(),
		Requests: make([]RequestResult, len(out.Rows)),
	}
	for i, r := range out.Rows {
		res.Requests[i] = RequestResult(r)
		res.Usage.DraftTokens += r.Drafted
		res.Usage.AcceptedTokens += r.Accepted
		res.Usage.EmittedTokens += len(res.Outputs[i])
	}
	if res.Usage.DraftTokens > 0 {
		res.Usage.AcceptanceRate = float64(res.Usage.AcceptedTokens) / float64(res.Usage.DraftTokens)
	}
	return res
}
