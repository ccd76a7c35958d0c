package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// VIN format: 17 alphanumeric characters, excluding I, O, Q.
var vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// ValidateQuery checks the single precondition the engine places on a
// query: it must contain something other than whitespace. Everything else
// is the extractor's problem.
func ValidateQuery(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// ValidateListing checks the minimum a listing needs before persistence.
func ValidateListing(l Listing) error {
	if l.Source == "" {
		return fmt.Errorf("listing: %w: source", errMissingField)
	}
	if l.Brand == "" && l.Model == "" && l.Description == "" {
		return fmt.Errorf("listing: %w: no identifying content", errMissingField)
	}
	if l.VIN != "" && !vinRegex.MatchString(strings.ToUpper(l.VIN)) {
		return fmt.Errorf("listing: invalid VIN %q", l.VIN)
	}
	return nil
}

var errMissingField = fmt.Errorf("missing field")

// ValidateEmbedding checks dimensionality against EmbeddingDim.
func ValidateEmbedding(v []float32) error {
	if len(v) != EmbeddingDim {
		return fmt.Errorf("%w: got %d, want %d", ErrBadVector, len(v), EmbeddingDim)
	}
	return nil
}
