// Package embedding converts text into fixed-length vectors.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Provider embeds a batch of texts. The returned slice has the same length
// and order as the input.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding model; cached vectors are keyed by it.
	Model() string
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
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

// Truncate cuts text to at most maxChars runes. maxChars <= 0 disables it.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= maxChars {
		return text
	}
	return string(r[:maxChars])
}

func checkCount(want, got int) error {
	if want != got {
		return fmt.Errorf("embedding: expected %d vectors, got %d", want, got)
	}
	return nil
}
