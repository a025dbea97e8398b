package importer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
)

func TestOrchestrator_Run(t *testing.T) {
	o := NewOrchestrator(10, zap.NewNop())

	result, err := o.Run(context.Background(), "GOVMAN", func(ctx context.Context, r *Result) error {
		r.Total = 2
		r.Created = 2
		return nil
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "GOVMAN", result.Source)
	assert.Equal(t, 2, result.Created)
	assert.False(t, result.CompletedAt.IsZero())
	assert.Equal(t, StateIdle, o.Status("GOVMAN"))
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	o := NewOrchestrator(10, zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.Run(context.Background(), "GOVMAN", func(ctx context.Context, r *Result) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.Equal(t, StateRunning, o.Status("GOVMAN"))

	_, err := o.Run(context.Background(), "GOVMAN", func(ctx context.Context, r *Result) error {
		t.Error("second run must not execute")
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrImportInProgress)

	close(release)
	wg.Wait()
	assert.Equal(t, StateIdle, o.Status("GOVMAN"))
}

func TestOrchestrator_DifferentSourcesIndependent(t *testing.T) {
	o := NewOrchestrator(10, zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.Run(context.Background(), "GOVMAN", func(ctx context.Context, r *Result) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	_, err := o.Run(context.Background(), "USCODE", func(ctx context.Context, r *Result) error {
		return nil
	})
	assert.NoError(t, err)

	close(release)
	wg.Wait()
}

func TestOrchestrator_FatalErrorKeepsPartialResult(t *testing.T) {
	o := NewOrchestrator(10, zap.NewNop())
	fatal := errors.New("write batch 3 failed")

	result, err := o.Run(context.Background(), "USCODE", func(ctx context.Context, r *Result) error {
		r.Total = 300
		r.Created = 200
		r.Failed = 100
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	require.NotNil(t, result)
	assert.Equal(t, 200, result.Created)

	// A failed run still releases the guard and retains its result.
	assert.Equal(t, StateIdle, o.Status("USCODE"))
	last, ok := o.LastResult("USCODE")
	require.True(t, ok)
	assert.Same(t, result, last)
}

func TestOrchestrator_LastResultRetention(t *testing.T) {
	o := NewOrchestrator(10, zap.NewNop())

	_, ok := o.LastResult("GOVMAN")
	assert.False(t, ok)

	first, err := o.Run(context.Background(), "GOVMAN", func(ctx context.Context, r *Result) error {
		r.Created = 1
		return nil
	})
	require.NoError(t, err)

	last, ok := o.LastResult("GOVMAN")
	require.True(t, ok)
	assert.Same(t, first, last)

	second, err := o.Run(context.Background(), "GOVMAN", func(ctx context.Context, r *Result) error {
		r.Created = 5
		return nil
	})
	require.NoError(t, err)

	last, ok = o.LastResult("GOVMAN")
	require.True(t, ok)
	assert.Same(t, second, last)
}
