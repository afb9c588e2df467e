package services

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/yukikurage/taskflow-api/internal/audit"
	"github.com/yukikurage/taskflow-api/internal/mail"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/telemetry"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type serviceTestEnv struct {
	db            *gorm.DB
	logs          *bytes.Buffer
	queue         *queue.MemoryQueue
	users         *UserService
	tasks         *TaskService
	auth          *AuthService
	registrations *RegistrationService
	resets        *PasswordResetService
	auditLogs     *AuditLogService
}

func setupServiceTestEnv(t *testing.T) serviceTestEnv {
	t.Helper()

	db := testutil.NewDB(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	recorder := audit.NewRecorder(auditRepo, logger)
	q := queue.NewMemoryQueue()
	dispatcher := mail.NewDispatcher(q)

	users := NewUserService(db, userRepo, recorder)
	return serviceTestEnv{
		db:            db,
		logs:          &logs,
		queue:         q,
		users:         users,
		tasks:         NewTaskService(db, taskRepo, userRepo, recorder),
		auth:          NewAuthService(userRepo, "test-secret", 0),
		registrations: NewRegistrationService(db, users, dispatcher, telemetry.Noop{}, logger),
		resets:        NewPasswordResetService(users, dispatcher, logger),
		auditLogs:     NewAuditLogService(auditRepo),
	}
}

var ctx = context.Background()

func strPtr(s string) *string { return &s }
