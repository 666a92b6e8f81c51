package apify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client for testing WaitForRun.
type mockClient struct {
	getRunFunc func(ctx context.Context, runID string) (*Run, error)
}

func (m *mockClient) StartRun(context.Context, string, any) (*Run, error) { return nil, nil }

func (m *mockClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	return m.getRunFunc(ctx, runID)
}

func (m *mockClient) ListRuns(context.Context, string, string) ([]Run, error) { return nil, nil }
func (m *mockClient) AbortRun(context.Context, string) (*Run, error)          { return nil, nil }
func (m *mockClient) DatasetItems(context.Context, string) ([]map[string]any, error) {
	return nil, nil
}

func TestWaitForRun_SucceedsImmediately(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
		},
	}

	run, err := WaitForRun(context.Background(), mock, "run-1",
		WithPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, "ds-1", run.DefaultDatasetID)
}

func TestWaitForRun_SucceedsAfterPolling(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			if calls.Add(1) < 3 {
				return &Run{ID: runID, Status: StatusRunning}, nil
			}
			return &Run{ID: runID, Status: StatusSucceeded}, nil
		},
	}

	run, err := WaitForRun(context.Background(), mock, "run-1",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitForRun_TimedOutRunIsTimeoutError(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusTimedOut}, nil
		},
	}

	_, err := WaitForRun(context.Background(), mock, "run-1",
		WithPollInterval(5*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWaitForRun_FailedRunCarriesStatusMessage(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusFailed, StatusMessage: "invalid input"}, nil
		},
	}

	_, err := WaitForRun(context.Background(), mock, "run-1",
		WithPollInterval(5*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
	assert.NotContains(t, err.Error(), "timed out")
}

func TestWaitForRun_ContextDeadline(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusRunning}, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := WaitForRun(ctx, mock, "run-1",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
