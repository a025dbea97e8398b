// Package registry integrates the external government data registries:
// Congress.gov, the Federal Register API, and the congress-legislators
// dataset. Search results are annotated with local duplicate matches before
// an operator confirms an import.
package registry

import (
	"context"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/importer"
)

// DuplicateAnnotation marks a live search result that already exists in the
// local store. Annotations are computed per result item and never persisted.
type DuplicateAnnotation struct {
	// ExistingID is the local entity id when a match was found, nil otherwise.
	ExistingID *uuid.UUID `json:"existingId,omitempty"`
	// Confidence is 1.0 for an exact natural-key match and a normalized
	// similarity score for name-only matches.
	Confidence float64 `json:"confidence"`
}

// IsDuplicate reports whether a local match was found.
func (a DuplicateAnnotation) IsDuplicate() bool {
	return a.ExistingID != nil
}

// DuplicateChecker answers "does this candidate already exist locally" for
// live registry results. Exact key matching goes through the same matcher
// the import pipelines use so the two paths can never disagree. The checker
// only reads, it never mutates the store.
type DuplicateChecker struct {
	matcher *importer.Matcher
	store   importer.MatcherStore
	logger  *zap.Logger
}

// NewDuplicateChecker creates a checker over the given entity store.
func NewDuplicateChecker(store importer.MatcherStore, source string, logger *zap.Logger) *DuplicateChecker {
	return &DuplicateChecker{
		matcher: importer.NewMatcher(store, source, importer.MatcherOptions{}, logger),
		store:   store,
		logger:  logger.Named("duplicate-checker"),
	}
}

// Check looks up the candidate by its natural key. An exact match annotates
// with confidence 1.0. When no key match exists and a name is given, a
// normalized-name lookup annotates with a similarity score instead; that
// score is informational only and never triggers an automatic merge.
func (c *DuplicateChecker) Check(ctx context.Context, externalID, name string) (DuplicateAnnotation, error) {
	existing, err := c.matcher.MatchKey(ctx, externalID)
	if err != nil {
		return DuplicateAnnotation{}, err
	}
	if existing != nil {
		id := existing.ID
		return DuplicateAnnotation{ExistingID: &id, Confidence: 1.0}, nil
	}

	if name == "" {
		return DuplicateAnnotation{}, nil
	}
	candidates, err := c.store.FindByNormalizedName(ctx, importer.NormalizeName(name))
	if err != nil {
		return DuplicateAnnotation{}, err
	}
	if len(candidates) != 1 {
		// Zero or ambiguous. Ambiguity is surfaced as no annotation here;
		// the import path rejects it explicitly.
		return DuplicateAnnotation{}, nil
	}

	id := candidates[0].ID
	return DuplicateAnnotation{
		ExistingID: &id,
		Confidence: nameConfidence(name, candidates[0].Name),
	}, nil
}

// nameConfidence scores how close two names are, in [0, 1].
func nameConfidence(a, b string) float64 {
	if importer.NormalizeName(a) == importer.NormalizeName(b) {
		return 0.9
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	score := 1.0 - float64(dist)/float64(longer)
	if score < 0 {
		return 0
	}
	return score
}
