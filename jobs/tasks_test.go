package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFlagger struct {
	window  time.Duration
	flagged int
	err     error
}

func (s *stubFlagger) FlagDueForUpkeep(ctx context.Context, window time.Duration) (int, error) {
	s.window = window
	return s.flagged, s.err
}

type stubTrimmer struct {
	retention time.Duration
	removed   int64
}

func (s *stubTrimmer) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return s.removed, nil
}

func TestHandleUpkeepDueScan(t *testing.T) {
	flagger := &stubFlagger{flagged: 3}
	tasks := NewTasks(nil, flagger, &stubTrimmer{})

	task, err := NewUpkeepScanTask(UpkeepScanPayload{Window: 14 * 24 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleUpkeepDueScan(context.Background(), task))
	assert.Equal(t, 14*24*time.Hour, flagger.window)
}

func TestHandleUpkeepDueScanSkipsBadPayload(t *testing.T) {
	tasks := NewTasks(nil, &stubFlagger{}, &stubTrimmer{})

	err := tasks.HandleUpkeepDueScan(context.Background(), asynq.NewTask(TaskUpkeepDueScan, []byte("{garbage")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewUpkeepScanTask(UpkeepScanPayload{})
	require.NoError(t, err)
	assert.ErrorIs(t, tasks.HandleUpkeepDueScan(context.Background(), task), asynq.SkipRetry)
}

func TestHandleUpkeepDueScanPropagatesErrorForRetry(t *testing.T) {
	flagger := &stubFlagger{err: errors.New("db down")}
	tasks := NewTasks(nil, flagger, &stubTrimmer{})

	task, err := NewUpkeepScanTask(UpkeepScanPayload{Window: time.Hour})
	require.NoError(t, err)
	err = tasks.HandleUpkeepDueScan(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleAuditCleanup(t *testing.T) {
	trimmer := &stubTrimmer{removed: 42}
	tasks := NewTasks(nil, &stubFlagger{}, trimmer)

	task, err := NewAuditCleanupTask(AuditCleanupPayload{Retention: 90 * 24 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleAuditCleanup(context.Background(), task))
	assert.Equal(t, 90*24*time.Hour, trimmer.retention)
}
