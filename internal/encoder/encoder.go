// Package encoder turns event text into fixed-length, L2-normalized
// embedding vectors using a pre-exported ONNX sentence encoder.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrModelUnavailable reports that the model or tokenizer failed to load.
// This is a process-health condition: every call on an unavailable encoder
// returns it until the process is restarted with valid artifacts.
var ErrModelUnavailable = errors.New("encoder model unavailable")

// ErrEmptyInput reports that the caller passed text that is empty after
// trimming. Callers are expected to skip embedding instead of encoding
// empty strings.
var ErrEmptyInput = errors.New("text for embedding is empty")

// InferenceError reports a failure during a single encode call. Unlike
// ErrModelUnavailable it is per-request and recoverable; the caller should
// treat the embedding as unavailable for that record only.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Encoder generates vector embeddings from text.
type Encoder interface {
	// Encode returns the embedding for text. The returned vector has
	// exactly Dimensions() entries and unit L2 norm, except for the
	// degenerate all-zero output which is returned unnormalized.
	Encode(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of the output vectors.
	Dimensions() int
}

// l2Normalize scales v to unit length in place and returns it. A zero
// vector is returned unchanged rather than dividing by zero.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
