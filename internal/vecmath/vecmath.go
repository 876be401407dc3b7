// Package vecmath holds the small amount of float32 vector arithmetic the
// encoders and index backends share.
package vecmath

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Metric names a distance function
type Metric string

const (
	// Cosine distance is 1 - cosine similarity, in [0, 2]
	Cosine Metric = "cosine"
	// L2 distance is the squared euclidean distance, unbounded
	L2 Metric = "l2"
)

// ParseMetric validates a metric name; empty means Cosine
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case "", Cosine:
		return Cosine, nil
	case L2:
		return L2, nil
	default:
		return "", fmt.Errorf("unknown metric %q (supported: cosine, l2)", name)
	}
}

// Distance computes the distance between a and b under m. Vectors of
// different length are compared over the shorter prefix.
func (m Metric) Distance(a, b []float32) float64 {
	if m == L2 {
		return SquaredL2(a, b)
	}
	return 1 - CosineSimilarity(a, b)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SquaredL2 returns the squared euclidean distance
func SquaredL2(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Encode serializes v as little-endian float32s
func Encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// Decode parses bytes written by Encode
func Decode(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
