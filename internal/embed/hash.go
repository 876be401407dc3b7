package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/youthpolicy/policyrag/internal/vecmath"
)

// DefaultHashDimension is used when no dimension is configured
const DefaultHashDimension = 512

// Feature weights. Whole words dominate; character bigrams let Korean
// compounds ("취업지원") match their parts ("취업").
const (
	wordWeight   = 1.0
	bigramWeight = 0.5
)

// HashEncoder is a local, dependency-free encoder based on signed feature
// hashing of word and character-bigram tokens. Vectors are L2-normalized.
type HashEncoder struct {
	dim int
}

// NewHashEncoder creates a hash encoder; non-positive dimensions use the default
func NewHashEncoder(dim int) *HashEncoder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEncoder{dim: dim}
}

// Name returns the encoder identity
func (e *HashEncoder) Name() string {
	return fmt.Sprintf("hash/%d", e.dim)
}

// Dimension returns the vector length
func (e *HashEncoder) Dimension() int {
	return e.dim
}

// Encode hashes text into a unit vector. Text without any letters or digits
// yields the zero vector.
func (e *HashEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	for _, word := range tokenize(text) {
		e.add(v, "w:"+word, wordWeight)

		runes := []rune(word)
		for i := 0; i+1 < len(runes); i++ {
			e.add(v, "b:"+string(runes[i:i+2]), bigramWeight)
		}
	}
	return vecmath.Normalize(v), nil
}

// EncodeBatch encodes each text in order
func (e *HashEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *HashEncoder) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := sum % uint64(e.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

// tokenize lowercases text and splits it on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
