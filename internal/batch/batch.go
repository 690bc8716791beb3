// Package batch reads verification batches from YAML or JSON files and
// turns them into rejection.Input.
package batch

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/x448/float16"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/specdec/internal/rejection"
	"github.com/samcharles93/specdec/internal/rng"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ErrInvalidBatch reports a batch description that cannot be converted.
var ErrInvalidBatch = errors.New("invalid batch")

// File is one verification batch.
type File struct {
	VocabSize int       `yaml:"vocab_size" json:"vocab_size"`
	Requests  []Request `yaml:"requests" json:"requests"`
}

// Request describes one sequence. Logits and DraftProbs carry one row of
// VocabSize values per draft token, either as nested float lists or as a
// base64 little-endian float16 blob in the *F16 fields.
type Request struct {
	DraftTokenIDs []int64 `yaml:"draft_token_ids" json:"draft_token_ids"`
	// Temperature <= 0 selects greedy sampling.
	Temperature  float32 `yaml:"temperature" json:"temperature"`
	Seed         *uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
	BonusTokenID int64   `yaml:"bonus_token_id" json:"bonus_token_id"`

	Logits        [][]float32 `yaml:"logits,omitempty" json:"logits,omitempty"`
	LogitsF16     string      `yaml:"logits_f16,omitempty" json:"logits_f16,omitempty"`
	DraftProbs    [][]float32 `yaml:"draft_probs,omitempty" json:"draft_probs,omitempty"`
	DraftProbsF16 string      `yaml:"draft_probs_f16,omitempty" json:"draft_probs_f16,omitempty"`
}

// FormatFromPath picks the format from a file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	f, err := Decode(bytes.NewReader(data), FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func Decode(r io.Reader, format string) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidBatch, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidBatch, err)
		}
	default:
		return nil, fmt.Errorf("unknown batch format %q", format)
	}
	return &f, nil
}

func (f *File) Encode(w io.Writer, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	default:
		return fmt.Errorf("unknown batch format %q", format)
	}
}

// Input flattens the batch. Requests with a seed get their own generator.
// Draft probabilities must be given for every request or for none.
func (f *File) Input() (rejection.Input, error) {
	var in rejection.Input
	if f.VocabSize <= 0 {
		return in, fmt.Errorf("%w: vocab_size must be positive, got %d", ErrInvalidBatch, f.VocabSize)
	}
	if len(f.Requests) == 0 {
		return in, rejection.ErrEmptyBatch
	}

	withDraft := 0
	for _, r := range f.Requests {
		if r.DraftProbs != nil || r.DraftProbsF16 != "" {
			withDraft++
		}
	}
	if withDraft != 0 && withDraft != len(f.Requests) {
		return in, fmt.Errorf("%w: draft probabilities given for %d of %d requests", ErrInvalidBatch, withDraft, len(f.Requests))
	}

	numTokens := 0
	for _, r := range f.Requests {
		numTokens += len(r.DraftTokenIDs)
	}
	in = rejection.Input{
		DraftTokenIDs: make([][]int64, len(f.Requests)),
		TargetLogits:  make([]float32, 0, numTokens*f.VocabSize),
		VocabSize:     f.VocabSize,
		BonusTokenIDs: make([]int64, len(f.Requests)),
	}
	if withDraft > 0 {
		in.DraftProbs = make([]float32, 0, numTokens*f.VocabSize)
	}
	temps := make([]float32, len(f.Requests))
	gens := rng.Generators{}

	for i, r := range f.Requests {
		n := len(r.DraftTokenIDs)
		in.DraftTokenIDs[i] = r.DraftTokenIDs
		if in.DraftTokenIDs[i] == nil {
			in.DraftTokenIDs[i] = []int64{}
		}
		in.BonusTokenIDs[i] = r.BonusTokenID
		temps[i] = r.Temperature
		if temps[i] <= 0 {
			temps[i] = rejection.GreedyTemperature
		}
		if r.Seed != nil {
			gens[i] = rng.New(*r.Seed)
		}

		logits, err := rows(fmt.Sprintf("requests[%d].logits", i), r.Logits, r.LogitsF16, n, f.VocabSize)
		if err != nil {
			return rejection.Input{}, err
		}
		in.TargetLogits = append(in.TargetLogits, logits...)
		if withDraft > 0 {
			dp, err := rows(fmt.Sprintf("requests[%d].draft_probs", i), r.DraftProbs, r.DraftProbsF16, n, f.VocabSize)
			if err != nil {
				return rejection.Input{}, err
			}
			in.DraftProbs = append(in.DraftProbs, dp...)
		}
	}
	in.CuNumDraftTokens = rejection.CumulativeOffsets(in.DraftTokenIDs)
	in.Metadata = rejection.NewMetadata(temps, gens)
	return in, nil
}

// rows flattens n rows of vocab values given either as nested lists or as
// an f16 blob.
func rows(field string, nested [][]float32, f16 string, n, vocab int) ([]float32, error) {
	if nested != nil && f16 != "" {
		return nil, fmt.Errorf("%w: %s given both as floats and as f16", ErrInvalidBatch, field)
	}
	if f16 != "" {
		flat, err := DecodeF16(f16)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBatch, field, err)
		}
		if len(flat) != n*vocab {
			return nil, &rejection.ShapeError{Field: field, Want: n * vocab, Got: len(flat)}
		}
		return flat, nil
	}
	if len(nested) != n {
		return nil, &rejection.ShapeError{Field: field, Want: n, Got: len(nested)}
	}
	flat := make([]float32, 0, n*vocab)
	for pos, row := range nested {
		if len(row) != vocab {
			return nil, &rejection.ShapeError{Field: fmt.Sprintf("%s[%d]", field, pos), Want: vocab, Got: len(row)}
		}
		flat = append(flat, row...)
	}
	return flat, nil
}

// EncodeF16 packs values as base64 little-endian IEEE half floats.
func EncodeF16(values []float32) string {
	raw := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(raw[2*i:], float16.Fromfloat32(v).Bits())
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeF16(s string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("odd f16 payload length %d", len(raw))
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32()
		if math.IsNaN(float64(out[i])) {
			return nil, fmt.Errorf("NaN at f16 element %d", i)
		}
	}
	return out, nil
}
