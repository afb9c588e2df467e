package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"gorm.io/gorm"
)

func newRecorder(t *testing.T, db *gorm.DB) (*Recorder, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewRecorder(repository.NewAuditLogRepository(db), logger), &buf
}

func TestDiff_OnlyChangedFields(t *testing.T) {
	before := map[string]any{"title": "old", "status": "pending", "description": nil}
	after := map[string]any{"title": "new", "status": "pending", "description": nil}

	changes := Diff(before, after)

	assert.Equal(t, map[string]any{"title": Change{From: "old", To: "new"}}, changes)
}

func TestDiff_FiltersSensitiveFields(t *testing.T) {
	changes := Diff(map[string]any{"password_hash": "a"}, map[string]any{"password_hash": "b"})

	assert.Equal(t, Change{From: filtered, To: filtered}, changes["password_hash"])
}

func TestCreated_ScrubsPasswordHash(t *testing.T) {
	user := &models.User{ID: 4, Username: "alice", Email: "alice@example.com", PasswordHash: "$2a$..."}

	entry := Created(user)

	assert.Equal(t, models.AuditActionCreated, entry.Action)
	assert.Equal(t, models.UserRef(4), entry.Resource)
	assert.Equal(t, filtered, entry.Changes["password_hash"])
	assert.Equal(t, "alice", entry.Changes["username"])
}

func TestRecorder_Record(t *testing.T) {
	db := testutil.NewDB(t)
	recorder, logs := newRecorder(t, db)
	actor := testutil.CreateUser(t, db, "actor")

	task := &models.Task{ID: 12, Title: "Write docs", Status: models.TaskStatusPending}
	meta := Meta{ActorID: &actor.ID, IPAddress: "10.0.0.1", UserAgent: "curl/8", RequestID: "req-9"}

	err := db.Transaction(func(tx *gorm.DB) error {
		recorder.Record(context.Background(), tx, meta, Created(task))
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, logs.String())

	rows := testutil.AuditLogs(t, db)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, models.AuditActionCreated, row.Action)
	assert.Equal(t, models.TaskRef(12), row.Resource())
	assert.Equal(t, actor.ID, *row.UserID)
	assert.Equal(t, "10.0.0.1", row.IPAddress)
	assert.Equal(t, "curl/8", row.UserAgent)
	assert.Equal(t, "req-9", row.RequestID)

	var changes map[string]any
	require.NoError(t, json.Unmarshal(row.Changes, &changes))
	assert.Equal(t, "Write docs", changes["title"])
}

func TestRecorder_FailureIsSwallowedAndLogged(t *testing.T) {
	db := testutil.NewDB(t)
	recorder, logs := newRecorder(t, db)
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&models.Task{Title: "kept", Status: models.TaskStatusPending}).Error)
		recorder.Record(context.Background(), tx, Meta{}, Created(&models.Task{ID: 1}))
		return nil
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Task{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	assert.Equal(t, "audit_log_failed", record["event"])
	assert.Equal(t, "Task", record["resource_type"])
	assert.Equal(t, float64(1), record["resource_id"])
	assert.NotEmpty(t, record["error"])
}

type panickingRepo struct {
	repository.AuditLogRepository
}

func (p panickingRepo) WithTx(*gorm.DB) repository.AuditLogRepository { return p }

func (panickingRepo) Create(context.Context, *models.AuditLog) error {
	panic("audit store unavailable")
}

func TestRecorder_PanicIsRecovered(t *testing.T) {
	db := testutil.NewDB(t)
	var buf bytes.Buffer
	recorder := NewRecorder(panickingRepo{}, slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.NotPanics(t, func() {
		_ = db.Transaction(func(tx *gorm.DB) error {
			recorder.Record(context.Background(), tx, Meta{}, Created(&models.User{ID: 2}))
			return nil
		})
	})
	assert.Contains(t, buf.String(), "audit_log_failed")
	assert.Contains(t, buf.String(), "audit store unavailable")
}
