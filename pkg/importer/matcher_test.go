package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMatcherStore struct {
	byExternalID map[string]*ExistingEntity
	byName       map[string][]*ExistingEntity
	err          error
}

func (m *mockMatcherStore) FindByExternalID(ctx context.Context, externalID string) (*ExistingEntity, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byExternalID[externalID], nil
}

func (m *mockMatcherStore) FindByNormalizedName(ctx context.Context, name string) ([]*ExistingEntity, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byName[NormalizeName(name)], nil
}

func TestMatcher_CreateWhenUnmatched(t *testing.T) {
	store := &mockMatcherStore{}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{NameFallback: true, ForceOverwrite: true}, zap.NewNop())

	decision, err := m.Match(context.Background(), "GOVMAN:1", "New Agency")
	require.NoError(t, err)
	assert.Equal(t, DecisionCreate, decision.Kind)
}

func TestMatcher_ExactKeyUpdateWithForce(t *testing.T) {
	existingID := uuid.New()
	store := &mockMatcherStore{
		byExternalID: map[string]*ExistingEntity{
			"GOVMAN:1": {ID: existingID, Name: "Agency", ImportSource: "GOVMAN"},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{ForceOverwrite: true}, zap.NewNop())

	decision, err := m.Match(context.Background(), "GOVMAN:1", "Agency")
	require.NoError(t, err)
	assert.Equal(t, DecisionUpdate, decision.Kind)
	assert.Equal(t, existingID, decision.ExistingID)
}

func TestMatcher_ExactKeySkipWithoutForce(t *testing.T) {
	existingID := uuid.New()
	store := &mockMatcherStore{
		byExternalID: map[string]*ExistingEntity{
			"K-1": {ID: existingID, ImportSource: "CONGRESS"},
		},
	}
	m := NewMatcher(store, "CONGRESS", MatcherOptions{}, zap.NewNop())

	decision, err := m.Match(context.Background(), "K-1", "")
	require.NoError(t, err)
	assert.Equal(t, DecisionSkip, decision.Kind)
	assert.Equal(t, existingID, decision.ExistingID)
}

func TestMatcher_ExactKeyOtherSourceNotOverwritten(t *testing.T) {
	store := &mockMatcherStore{
		byExternalID: map[string]*ExistingEntity{
			"GOVMAN:1": {ID: uuid.New(), ImportSource: "MANUAL"},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{ForceOverwrite: true}, zap.NewNop())

	decision, err := m.Match(context.Background(), "GOVMAN:1", "Agency")
	require.NoError(t, err)
	assert.Equal(t, DecisionSkip, decision.Kind)
}

func TestMatcher_NameFallbackSameSourceUpdates(t *testing.T) {
	existingID := uuid.New()
	store := &mockMatcherStore{
		byName: map[string][]*ExistingEntity{
			"department of examples": {
				{ID: existingID, Name: "Department of Examples", ImportSource: "GOVMAN"},
			},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{NameFallback: true, ForceOverwrite: true}, zap.NewNop())

	decision, err := m.Match(context.Background(), "GOVMAN:99", "Department of Examples")
	require.NoError(t, err)
	assert.Equal(t, DecisionUpdate, decision.Kind)
	assert.Equal(t, existingID, decision.ExistingID)
}

func TestMatcher_NameFallbackOtherSourceRejected(t *testing.T) {
	store := &mockMatcherStore{
		byName: map[string][]*ExistingEntity{
			"department of examples": {
				{ID: uuid.New(), Name: "Department of Examples", ImportSource: "MANUAL"},
			},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{NameFallback: true, ForceOverwrite: true}, zap.NewNop())

	decision, err := m.Match(context.Background(), "GOVMAN:99", "Department of Examples")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, decision.Kind)
	assert.Contains(t, decision.Reason, "MANUAL")
}

func TestMatcher_NameFallbackAmbiguousRejected(t *testing.T) {
	store := &mockMatcherStore{
		byName: map[string][]*ExistingEntity{
			"office of policy": {
				{ID: uuid.New(), ImportSource: "GOVMAN"},
				{ID: uuid.New(), ImportSource: "GOVMAN"},
			},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{NameFallback: true, ForceOverwrite: true}, zap.NewNop())

	decision, err := m.Match(context.Background(), "GOVMAN:99", "Office of Policy")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, decision.Kind)
	assert.Contains(t, decision.Reason, "2 existing records")
}

func TestMatcher_NameFallbackDisabled(t *testing.T) {
	store := &mockMatcherStore{
		byName: map[string][]*ExistingEntity{
			"department of examples": {
				{ID: uuid.New(), ImportSource: "GOVMAN"},
			},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{ForceOverwrite: true}, zap.NewNop())

	decision, err := m.Match(context.Background(), "GOVMAN:99", "Department of Examples")
	require.NoError(t, err)
	assert.Equal(t, DecisionCreate, decision.Kind)
}

func TestMatcher_SameRunNameCollisionRejected(t *testing.T) {
	store := &mockMatcherStore{}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{NameFallback: true, ForceOverwrite: true}, zap.NewNop())

	first, err := m.Match(context.Background(), "GOVMAN:1", "Bureau of Land")
	require.NoError(t, err)
	assert.Equal(t, DecisionCreate, first.Kind)

	// Different record claims the same normalized name within the run.
	second, err := m.Match(context.Background(), "GOVMAN:2", "  bureau of LAND ")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, second.Kind)
	assert.Contains(t, second.Reason, "GOVMAN:1")

	// The same record retried is not a collision with itself.
	again, err := m.Match(context.Background(), "GOVMAN:1", "Bureau of Land")
	require.NoError(t, err)
	assert.Equal(t, DecisionCreate, again.Kind)
}

func TestMatcher_SameRunNameCollisionOnExistingEntity(t *testing.T) {
	existingID := uuid.New()
	store := &mockMatcherStore{
		byName: map[string][]*ExistingEntity{
			"bureau of land": {
				{ID: existingID, Name: "Bureau of Land", ImportSource: "GOVMAN"},
			},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{NameFallback: true, ForceOverwrite: true}, zap.NewNop())

	first, err := m.Match(context.Background(), "GOVMAN:1", "Bureau of Land")
	require.NoError(t, err)
	assert.Equal(t, DecisionUpdate, first.Kind)
	assert.Equal(t, existingID, first.ExistingID)

	// A second record fallback-matching the same existing entity must not
	// silently overwrite the first claimant's update.
	second, err := m.Match(context.Background(), "GOVMAN:2", "Bureau of Land")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, second.Kind)
	assert.Contains(t, second.Reason, "GOVMAN:1")
}

func TestMatcher_EmptyExternalIDSkipsKeyLookup(t *testing.T) {
	store := &mockMatcherStore{
		byExternalID: map[string]*ExistingEntity{
			"": {ID: uuid.New(), ImportSource: "GOVMAN"},
		},
	}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{ForceOverwrite: true}, zap.NewNop())

	existing, err := m.MatchKey(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestMatcher_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection reset")
	store := &mockMatcherStore{err: storeErr}
	m := NewMatcher(store, "GOVMAN", MatcherOptions{NameFallback: true}, zap.NewNop())

	_, err := m.Match(context.Background(), "GOVMAN:1", "Agency")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storeErr))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "department of state", NormalizeName("  Department of State "))
	assert.Equal(t, "", NormalizeName("   "))
}
