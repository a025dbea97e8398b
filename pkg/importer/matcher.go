package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExistingEntity is the matcher's view of a persisted record: just enough to
// decide create / update / skip / reject.
type ExistingEntity struct {
	ID           uuid.UUID
	Name         string
	ImportSource string
}

// MatcherStore is the persisted-store lookup surface the matcher consults.
// Implemented by the entity repositories.
type MatcherStore interface {
	// FindByExternalID looks up the source-specific natural key, e.g.
	// "GOVMAN:123" or "/us/usc/t5/s101". Returns nil when absent.
	FindByExternalID(ctx context.Context, externalID string) (*ExistingEntity, error)
	// FindByNormalizedName returns every persisted candidate whose name
	// matches case-insensitively after whitespace trimming.
	FindByNormalizedName(ctx context.Context, name string) ([]*ExistingEntity, error)
}

// MatcherOptions tune per-source matching behavior.
type MatcherOptions struct {
	// NameFallback enables the secondary normalized-name match, for sources
	// without a guaranteed stable external id.
	NameFallback bool
	// ForceOverwrite allows an exact-key match to become an update. When
	// false, an exact match yields SkipDuplicate: the safety rail against
	// accidental overwrite from manual operator action. Batch imports run
	// with this enabled; live-search imports require an explicit flag.
	ForceOverwrite bool
}

// Matcher decides, per record, whether to create, update, skip, or reject,
// using a primary external-id match with a secondary normalized-name fallback.
type Matcher struct {
	store  MatcherStore
	source string
	opts   MatcherOptions
	logger *zap.Logger

	// seenNames tracks normalized names already claimed within this run,
	// whether the claim created a new record or fallback-matched an existing
	// one. A second record with the same name is rejected rather than
	// resolved first-wins or last-wins.
	seenNames map[string]string
}

// NewMatcher creates a matcher for one import run. Matchers carry per-run
// state and must not be shared across runs.
func NewMatcher(store MatcherStore, source string, opts MatcherOptions, logger *zap.Logger) *Matcher {
	return &Matcher{
		store:     store,
		source:    source,
		opts:      opts,
		logger:    logger.Named("matcher"),
		seenNames: make(map[string]string),
	}
}

// NormalizeName lowercases and whitespace-trims a name for fallback matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchKey applies the primary exact natural-key lookup. Shared with the
// cross-source duplicate service, which must use the identical contract.
func (m *Matcher) MatchKey(ctx context.Context, externalID string) (*ExistingEntity, error) {
	if externalID == "" {
		return nil, nil
	}
	existing, err := m.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("external-id lookup for %q: %w", externalID, err)
	}
	return existing, nil
}

// Match classifies one record against the persisted store. The externalID is
// the already-formatted natural key ("GOVMAN:123"); name is the record's
// display name used for the fallback path, empty to disable it for this record.
func (m *Matcher) Match(ctx context.Context, externalID, name string) (MatchDecision, error) {
	existing, err := m.MatchKey(ctx, externalID)
	if err != nil {
		return MatchDecision{}, err
	}
	if existing != nil {
		return m.decideOnExisting(existing, true), nil
	}

	if m.opts.NameFallback && name != "" {
		normalized := NormalizeName(name)
		if prior, taken := m.seenNames[normalized]; taken && prior != externalID {
			return MatchDecision{
				Kind:   DecisionReject,
				Reason: fmt.Sprintf("name %q collides with record %q in the same run", name, prior),
			}, nil
		}

		decision, matched, err := m.matchByName(ctx, name)
		if err != nil {
			return MatchDecision{}, err
		}
		if matched {
			if decision.Kind != DecisionReject {
				m.seenNames[normalized] = externalID
			}
			return decision, nil
		}
		m.seenNames[normalized] = externalID
	}

	return MatchDecision{Kind: DecisionCreate}, nil
}

func (m *Matcher) matchByName(ctx context.Context, name string) (MatchDecision, bool, error) {
	candidates, err := m.store.FindByNormalizedName(ctx, strings.TrimSpace(name))
	if err != nil {
		return MatchDecision{}, false, fmt.Errorf("name lookup for %q: %w", name, err)
	}
	switch len(candidates) {
	case 0:
		return MatchDecision{}, false, nil
	case 1:
		candidate := candidates[0]
		// A name-fallback hit on a record another pipeline (or a human) wrote
		// is never auto-merged; it goes to the ambiguous-match rejection path.
		if candidate.ImportSource != m.source {
			return MatchDecision{
				Kind: DecisionReject,
				Reason: fmt.Sprintf("name %q matches existing record %s from source %q",
					name, candidate.ID, candidate.ImportSource),
			}, true, nil
		}
		return m.decideOnExisting(candidate, false), true, nil
	default:
		return MatchDecision{
			Kind:   DecisionReject,
			Reason: fmt.Sprintf("name %q matches %d existing records", name, len(candidates)),
		}, true, nil
	}
}

func (m *Matcher) decideOnExisting(existing *ExistingEntity, exactKey bool) MatchDecision {
	if !m.opts.ForceOverwrite {
		return MatchDecision{Kind: DecisionSkip, ExistingID: existing.ID}
	}
	if exactKey && existing.ImportSource != "" && existing.ImportSource != m.source {
		// Tagged by a different pipeline: leave it alone.
		return MatchDecision{Kind: DecisionSkip, ExistingID: existing.ID}
	}
	return MatchDecision{Kind: DecisionUpdate, ExistingID: existing.ID}
}
