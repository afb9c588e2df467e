// Package audit writes the append-only trail of user and task mutations.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const filtered = "[FILTERED]"

// sensitiveFields never reach the audit table in clear text.
var sensitiveFields = map[string]bool{
	"password_hash": true,
}

// Meta is the request context of a mutation. Every field is optional.
type Meta struct {
	ActorID   *uint64
	IPAddress string
	UserAgent string
	RequestID string
}

// Entry describes one mutation to record.
type Entry struct {
	Action   models.AuditAction
	Resource models.ResourceRef
	Changes  map[string]any
}

// Created records the initial values of an entity.
func Created(e models.Auditable) Entry {
	return Entry{
		Action:   models.AuditActionCreated,
		Resource: e.AuditRef(),
		Changes:  scrub(e.AuditSnapshot()),
	}
}

// Updated records {field: {from, to}} for the fields that differ between
// before and the current state of e.
func Updated(before map[string]any, e models.Auditable) Entry {
	return Entry{
		Action:   models.AuditActionUpdated,
		Resource: e.AuditRef(),
		Changes:  Diff(before, e.AuditSnapshot()),
	}
}

// Destroyed records the final values of an entity.
func Destroyed(e models.Auditable) Entry {
	return Entry{
		Action:   models.AuditActionDestroyed,
		Resource: e.AuditRef(),
		Changes:  scrub(e.AuditSnapshot()),
	}
}

type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

func Diff(before, after map[string]any) map[string]any {
	keys := make([]string, 0, len(after))
	for k := range after {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := map[string]any{}
	for _, k := range keys {
		from, to := before[k], after[k]
		if reflect.DeepEqual(from, to) {
			continue
		}
		if sensitiveFields[k] {
			changes[k] = Change{From: filtered, To: filtered}
			continue
		}
		changes[k] = Change{From: from, To: to}
	}
	return changes
}

func scrub(snapshot map[string]any) map[string]any {
	for k := range snapshot {
		if sensitiveFields[k] {
			snapshot[k] = filtered
		}
	}
	return snapshot
}

// Recorder appends audit rows. It never fails the caller.
type Recorder struct {
	repo   repository.AuditLogRepository
	logger *slog.Logger
}

func NewRecorder(repo repository.AuditLogRepository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record writes one audit row for entry inside a savepoint of tx, so a failed
// insert is rolled back alone and tx stays usable. Errors and panics are
// logged with event=audit_log_failed and suppressed.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, meta Meta, entry Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logFailure(ctx, entry, fmt.Errorf("panic: %v", rec))
		}
	}()

	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		r.logFailure(ctx, entry, fmt.Errorf("failed to encode changes: %w", err))
		return
	}

	log := &models.AuditLog{
		Action:    entry.Action,
		Changes:   datatypes.JSON(changes),
		UserID:    meta.ActorID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	}
	log.SetResource(entry.Resource)

	err = tx.Transaction(func(sp *gorm.DB) error {
		return r.repo.WithTx(sp).Create(ctx, log)
	})
	if err != nil {
		r.logFailure(ctx, entry, err)
	}
}

func (r *Recorder) logFailure(ctx context.Context, entry Entry, err error) {
	r.logger.ErrorContext(ctx, "failed to write audit log",
		"event", "audit_log_failed",
		"action", string(entry.Action),
		"resource_type", string(entry.Resource.Kind),
		"resource_id", entry.Resource.ID,
		"error", err.Error(),
	)
}
