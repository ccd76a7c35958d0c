package intent

import (
	"context"
	"log/slog"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/WessleyAI/carseek-mvp/pkg/carspec"
)

// Service runs intent extraction and query embedding for one query.
type Service struct {
	extractor Extractor
	embedder  Embedder
	logger    *slog.Logger
}

// NewService creates a Service. logger may be nil.
func NewService(extractor Extractor, embedder Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractor: extractor, embedder: embedder, logger: logger}
}

// Analyze extracts structured intent and embeds the query, running both
// external calls concurrently. Any failure is returned as a
// *domain.ExtractionError: this stage has no degraded mode.
func (s *Service) Analyze(ctx context.Context, query string) (domain.Intent, []float32, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return domain.Intent{}, nil, err
	}

	type extractOut struct {
		intent domain.Intent
		err    error
	}
	type embedOut struct {
		vec []float32
		err error
	}

	extCh := make(chan extractOut, 1)
	embCh := make(chan embedOut, 1)

	go func() {
		it, err := s.extractor.ExtractIntent(ctx, query)
		extCh <- extractOut{intent: it, err: err}
	}()
	go func() {
		vec, err := s.embedder.Embed(ctx, query)
		embCh <- embedOut{vec: vec, err: err}
	}()

	ext := <-extCh
	emb := <-embCh

	if ext.err != nil {
		return domain.Intent{}, nil, domain.NewExtractionError("extract", ext.err)
	}
	if emb.err != nil {
		return domain.Intent{}, nil, domain.NewExtractionError("embed", emb.err)
	}
	if err := domain.ValidateEmbedding(emb.vec); err != nil {
		return domain.Intent{}, nil, domain.NewExtractionError("embed", err)
	}

	it := Canonicalize(ext.intent)
	s.logger.Info("query analyzed",
		"brand", strOrEmpty(it.Brand),
		"body_type", strOrEmpty(it.BodyType),
		"features", len(it.DesiredFeatures),
	)
	return it, emb.vec, nil
}

// Canonicalize normalizes extracted brand, body type, and fuel type
// against the carspec vocabulary. Unknown values pass through unchanged
// so the extractor's output is never silently discarded.
func Canonicalize(it domain.Intent) domain.Intent {
	if it.Brand != nil {
		if m, ok := carspec.CanonicalMake(*it.Brand); ok {
			it.Brand = &m
		}
	}
	if it.BodyType != nil {
		if bt, ok := carspec.CanonicalBodyType(*it.BodyType); ok {
			it.BodyType = &bt
		}
	}
	if it.FuelType != nil {
		if ft, ok := carspec.CanonicalFuelType(*it.FuelType); ok {
			it.FuelType = &ft
		}
	}
	return it
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
