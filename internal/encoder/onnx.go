package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	modelFileName     = "model.onnx"
	tokenizerFileName = "tokenizer/tokenizer.json"
	padToken          = "[PAD]"

	inputIDsName      = "input_ids"
	attentionMaskName = "attention_mask"
	outputName        = "last_hidden_state"
)

// Config for the ONNX encoder. ModelDir must contain model.onnx and
// tokenizer/tokenizer.json as produced by the offline export step.
type Config struct {
	ModelDir string
	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath      string
	MaxSeqLength     int
	VectorDimensions int
}

// ONNXEncoder runs a frozen transformer graph over tokenized text and pools
// the position-0 (CLS) hidden state into a normalized sentence embedding.
// It is loaded once and safe for concurrent use; onnxruntime sessions are
// internally thread-safe for stateless runs.
type ONNXEncoder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizer.Tokenizer
	dims      int
}

// NewONNXEncoder loads the inference graph and tokenizer from cfg.ModelDir.
// Missing artifacts or a runtime initialization failure return an error
// wrapping ErrModelUnavailable.
func NewONNXEncoder(cfg Config) (*ONNXEncoder, error) {
	modelPath := filepath.Join(cfg.ModelDir, modelFileName)
	tokenizerPath := filepath.Join(cfg.ModelDir, tokenizerFileName)

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model not found at %s", ErrModelUnavailable, modelPath)
	}
	if _, err := os.Stat(tokenizerPath); err != nil {
		return nil, fmt.Errorf("%w: tokenizer not found at %s", ErrModelUnavailable, tokenizerPath)
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: onnxruntime init: %v", ErrModelUnavailable, err)
		}
	}

	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer: %v", ErrModelUnavailable, err)
	}

	// Pad id falls back to 0 when the tokenizer defines no pad token.
	padID, ok := tk.TokenToId(padToken)
	if !ok {
		padID = 0
	}
	tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: cfg.MaxSeqLength,
		Strategy:  tokenizer.LongestFirst,
	})
	padStrategy := tokenizer.NewPaddingStrategy(tokenizer.WithFixed(cfg.MaxSeqLength))
	tk.WithPadding(&tokenizer.PaddingParams{
		Strategy:  *padStrategy,
		Direction: tokenizer.Right,
		PadId:     padID,
		PadToken:  padToken,
	})

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputIDsName, attentionMaskName},
		[]string{outputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load model: %v", ErrModelUnavailable, err)
	}

	return &ONNXEncoder{
		session:   session,
		tokenizer: tk,
		dims:      cfg.VectorDimensions,
	}, nil
}

// Encode tokenizes text, runs inference, and returns the L2-normalized
// CLS embedding. Pooling is deliberately the position-0 hidden state, not a
// mean pool; the exported model's similarity behavior depends on it.
func (e *ONNXEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.session == nil {
		return nil, ErrModelUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoding, err := e.tokenizer.EncodeSingle(text, true)
	if err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("tokenize: %w", err)}
	}

	seqLen := len(encoding.Ids)
	ids := make([]int64, seqLen)
	mask := make([]int64, seqLen)
	for i, id := range encoding.Ids {
		ids[i] = int64(id)
	}
	for i, m := range encoding.AttentionMask {
		mask[i] = int64(m)
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	defer maskTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor}, outputs); err != nil {
		return nil, &InferenceError{Err: err}
	}
	hidden := outputs[0].(*ort.Tensor[float32])
	defer hidden.Destroy()

	// Output shape is [batch, seq, hidden]; the CLS vector is the first
	// hidden-dim slice.
	outShape := hidden.GetShape()
	if len(outShape) != 3 {
		return nil, &InferenceError{Err: fmt.Errorf("unexpected output rank %d", len(outShape))}
	}
	hiddenDim := int(outShape[2])
	if hiddenDim != e.dims {
		return nil, &InferenceError{Err: fmt.Errorf("model produced %d dimensions, configured for %d", hiddenDim, e.dims)}
	}

	cls := make([]float32, hiddenDim)
	copy(cls, hidden.GetData()[:hiddenDim])

	return l2Normalize(cls), nil
}

// Dimensions returns the configured embedding width.
func (e *ONNXEncoder) Dimensions() int {
	return e.dims
}

// Close releases the inference session.
func (e *ONNXEncoder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
