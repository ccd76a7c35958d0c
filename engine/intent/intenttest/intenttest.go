// Package intenttest provides deterministic test doubles for the intent
// capability interfaces.
package intenttest

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

// Extractor is a test double for intent.Extractor.
type Extractor struct {
	// Func overrides the default behavior when set.
	Func func(ctx context.Context, query string) (domain.Intent, error)
	// Intent is returned when Func is nil.
	Intent domain.Intent
	// Err is returned when Func is nil and Err is non-nil.
	Err error

	Calls atomic.Int64
}

func (e *Extractor) ExtractIntent(ctx context.Context, query string) (domain.Intent, error) {
	e.Calls.Add(1)
	if e.Func != nil {
		return e.Func(ctx, query)
	}
	if e.Err != nil {
		return domain.Intent{}, e.Err
	}
	return e.Intent, nil
}

// Embedder is a test double for intent.Embedder. By default it produces
// a deterministic domain.EmbeddingDim-length vector derived from the
// text's FNV hash, so equal texts embed identically.
type Embedder struct {
	Func  func(ctx context.Context, text string) ([]float32, error)
	Err   error
	Calls atomic.Int64
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.Calls.Add(1)
	if e.Func != nil {
		return e.Func(ctx, text)
	}
	if e.Err != nil {
		return nil, e.Err
	}
	return DeterministicVector(text), nil
}

// DeterministicVector generates a stable unit-ish vector from text.
func DeterministicVector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, domain.EmbeddingDim)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000.0
	}
	return vec
}
