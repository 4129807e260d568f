package signature

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/search"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// ErrInvalid is matched by every ValidationError via errors.Is.
var ErrInvalid = errors.New("invalid signature")

// ValidationError describes the first problem found in a signature or set.
type ValidationError struct {
	ID     string // signature or set ID, empty when missing
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.ID, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Validate checks required fields, that the pattern can ever match, and
// that every example matches and no negative example does.
func Validate(s *types.Signature) error {
	if s == nil {
		return &ValidationError{Field: "signature", Reason: "signature is nil"}
	}

	if s.ID == "" {
		return &ValidationError{Field: "id", Reason: "signature ID is required"}
	}
	if s.Name == "" {
		return &ValidationError{ID: s.ID, Field: "name", Reason: "signature name is required"}
	}
	if s.Pattern.Len() == 0 {
		return &ValidationError{ID: s.ID, Field: "pattern", Reason: "signature pattern is required"}
	}
	if s.Pattern.KnownCount() == 0 {
		return &ValidationError{ID: s.ID, Field: "pattern", Reason: "pattern has no known bytes and can never match"}
	}

	if want := s.ComputeStructuralID(); s.StructuralID != "" && s.StructuralID != want {
		return &ValidationError{
			ID:     s.ID,
			Field:  "structural_id",
			Reason: fmt.Sprintf("inconsistent structural ID: got %s, expected %s", s.StructuralID, want),
		}
	}

	if len(s.Examples) == 0 && len(s.NegativeExamples) == 0 {
		return nil
	}

	searcher, err := search.Compile([]pattern.Pattern{s.Pattern})
	if err != nil {
		return fmt.Errorf("signature %s: %w", s.ID, err)
	}
	for i, ex := range s.Examples {
		if searcher.Find(ex)[0] == search.NotFound {
			return &ValidationError{ID: s.ID, Field: "examples", Reason: fmt.Sprintf("example %d does not match", i)}
		}
	}
	for i, ex := range s.NegativeExamples {
		if off := searcher.Find(ex)[0]; off != search.NotFound {
			return &ValidationError{ID: s.ID, Field: "negative_examples", Reason: fmt.Sprintf("negative example %d matches at offset %d", i, off)}
		}
	}
	return nil
}

// ValidateAll validates every signature and rejects duplicate IDs. All
// problems are returned joined.
func ValidateAll(sigs []*types.Signature) error {
	var errs []error
	seen := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		if err := Validate(s); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[s.ID] {
			errs = append(errs, &ValidationError{ID: s.ID, Field: "id", Reason: "duplicate signature ID"})
		}
		seen[s.ID] = true
	}
	return errors.Join(errs...)
}

// ValidateSet checks required fields, duplicate members and, when known is
// non-nil, that every member exists.
func ValidateSet(set *types.SignatureSet, known map[string]bool) error {
	if set == nil {
		return &ValidationError{Field: "set", Reason: "set is nil"}
	}
	if set.ID == "" {
		return &ValidationError{Field: "id", Reason: "set ID is required"}
	}
	if set.Name == "" {
		return &ValidationError{ID: set.ID, Field: "name", Reason: "set name is required"}
	}
	if len(set.SignatureIDs) == 0 {
		return &ValidationError{ID: set.ID, Field: "include_signature_ids", Reason: "set must reference at least one signature"}
	}

	seen := make(map[string]bool, len(set.SignatureIDs))
	for _, id := range set.SignatureIDs {
		if known != nil && !known[id] {
			return &ValidationError{ID: set.ID, Field: "include_signature_ids", Reason: "unknown signature ID: " + id}
		}
		if seen[id] {
			return &ValidationError{ID: set.ID, Field: "include_signature_ids", Reason: "duplicate signature ID: " + id}
		}
		seen[id] = true
	}
	return nil
}
