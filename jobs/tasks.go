// Package jobs runs the background maintenance work: flagging equipment due
// for upkeep and trimming old audit rows.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUpkeepDueScan flags equipment whose maintenance or calibration
	// falls due inside the configured window.
	TaskUpkeepDueScan = "upkeep:due-scan"
	// TaskAuditCleanup removes audit log rows older than the retention.
	TaskAuditCleanup = "audit:cleanup"
)

// UpkeepScanPayload carries the look-ahead window for the due scan.
type UpkeepScanPayload struct {
	Window time.Duration `json:"window"`
}

// AuditCleanupPayload carries the retention period for audit cleanup.
type AuditCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewUpkeepScanTask constructs an Asynq task for the due scan.
func NewUpkeepScanTask(payload UpkeepScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUpkeepDueScan, data), nil
}

// NewAuditCleanupTask constructs an Asynq task for audit cleanup.
func NewAuditCleanupTask(payload AuditCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}

// UpkeepFlagger marks due equipment, implemented by the equipment service.
type UpkeepFlagger interface {
	FlagDueForUpkeep(ctx context.Context, window time.Duration) (int, error)
}

// AuditTrimmer removes expired audit rows, implemented by shared.AuditLogger.
type AuditTrimmer interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Tasks bundles the task handlers with their dependencies.
type Tasks struct {
	logger    *slog.Logger
	equipment UpkeepFlagger
	audit     AuditTrimmer
}

// NewTasks constructs the task handler set.
func NewTasks(logger *slog.Logger, equipment UpkeepFlagger, audit AuditTrimmer) *Tasks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{logger: logger, equipment: equipment, audit: audit}
}

// HandleUpkeepDueScan processes TaskUpkeepDueScan tasks.
func (t *Tasks) HandleUpkeepDueScan(ctx context.Context, task *asynq.Task) error {
	var payload UpkeepScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Window <= 0 {
		return asynq.SkipRetry
	}
	flagged, err := t.equipment.FlagDueForUpkeep(ctx, payload.Window)
	if err != nil {
		return err
	}
	t.logger.Info("upkeep due scan finished",
		slog.Int("flagged", flagged),
		slog.Duration("window", payload.Window),
	)
	return nil
}

// HandleAuditCleanup processes TaskAuditCleanup tasks.
func (t *Tasks) HandleAuditCleanup(ctx context.Context, task *asynq.Task) error {
	var payload AuditCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	removed, err := t.audit.Cleanup(ctx, payload.Retention)
	if err != nil {
		return err
	}
	t.logger.Info("audit cleanup finished",
		slog.Int64("removed", removed),
		slog.Duration("retention", payload.Retention),
	)
	return nil
}
