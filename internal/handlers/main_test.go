package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/audit"
	"github.com/yukikurage/taskflow-api/internal/constants"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/mail"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/telemetry"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	services.PasswordCost = bcrypt.MinCost
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type handlerTestEnv struct {
	db     *gorm.DB
	queue  *queue.MemoryQueue
	router *gin.Engine
	auth   *services.AuthService
	users  *services.UserService
	tasks  *services.TaskService
}

// setupHandlerTestEnv wires the services over an in-memory database and
// returns a router carrying the same middleware chain as the server.
func setupHandlerTestEnv(t *testing.T) handlerTestEnv {
	t.Helper()

	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	recorder := audit.NewRecorder(auditRepo, logger)
	q := queue.NewMemoryQueue()
	dispatcher := mail.NewDispatcher(q)

	users := services.NewUserService(db, userRepo, recorder)
	tasks := services.NewTaskService(db, taskRepo, userRepo, recorder)
	auth := services.NewAuthService(userRepo, "test-secret", time.Hour)
	registrations := services.NewRegistrationService(db, users, dispatcher, telemetry.Noop{}, logger)
	resets := services.NewPasswordResetService(users, dispatcher, logger)
	auditLogs := services.NewAuditLogService(auditRepo)

	classifier := apierrors.NewClassifier(false, logger, nil)
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ErrorHandler(classifier),
		middleware.Recovery(classifier),
		sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))),
		middleware.CurrentUser(auth),
	)

	api := r.Group(constants.APIVersionPrefix)

	userHandler := NewUserHandler(users, resets)
	api.GET("/users", userHandler.ListUsers)
	api.POST("/users", userHandler.CreateUser)
	api.GET("/users/:id", userHandler.GetUser)
	api.PATCH("/users/:id", userHandler.UpdateUser)
	api.DELETE("/users/:id", userHandler.DeleteUser)
	api.POST("/users/:id/password_reset", userHandler.RequestPasswordReset)

	taskHandler := NewTaskHandler(tasks)
	api.GET("/tasks", taskHandler.ListTasks)
	api.POST("/tasks", taskHandler.CreateTask)
	api.GET("/tasks/:id", taskHandler.GetTask)
	api.PATCH("/tasks/:id", taskHandler.UpdateTask)
	api.DELETE("/tasks/:id", taskHandler.DeleteTask)
	api.PATCH("/tasks/:id/toggle_status", taskHandler.ToggleStatus)

	authHandler := NewAuthHandler(auth)
	api.POST("/auth", authHandler.Login)
	api.DELETE("/auth", authHandler.Logout)
	api.GET("/auth/me", middleware.RequireAuth(), authHandler.GetCurrentUser)

	api.POST("/registrations", NewRegistrationHandler(registrations).Register)
	api.GET("/audit_logs", NewAuditLogHandler(auditLogs).ListAuditLogs)

	return handlerTestEnv{
		db:     db,
		queue:  q,
		router: r,
		auth:   auth,
		users:  users,
		tasks:  tasks,
	}
}

// envelope is the decoded JSON body of any response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  []any           `json:"errors"`
	Meta    map[string]any  `json:"meta"`
}

func perform(t *testing.T, r http.Handler, method, url string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
