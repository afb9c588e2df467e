package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/taskflow-api/internal/models"
)

func ptr(s string) *string { return &s }

func TestValidateUser_Create(t *testing.T) {
	tests := []struct {
		name   string
		fields UserFields
		want   []string
	}{
		{
			name:   "valid",
			fields: UserFields{Username: "alice", Email: "alice@example.com", Password: ptr("secret123")},
		},
		{
			name:   "blank everything",
			fields: UserFields{},
			want:   []string{"Username can't be blank", "Email can't be blank", "Password can't be blank"},
		},
		{
			name:   "short username",
			fields: UserFields{Username: "al", Email: "al@example.com", Password: ptr("secret123")},
			want:   []string{"Username is too short (minimum is 3 characters)"},
		},
		{
			name:   "long username",
			fields: UserFields{Username: strings.Repeat("a", 51), Email: "a@example.com", Password: ptr("secret123")},
			want:   []string{"Username is too long (maximum is 50 characters)"},
		},
		{
			name:   "invalid email",
			fields: UserFields{Username: "alice", Email: "not-an-email", Password: ptr("secret123")},
			want:   []string{"Email is invalid"},
		},
		{
			name:   "password too long",
			fields: UserFields{Username: "alice", Email: "alice@example.com", Password: ptr(strings.Repeat("x", 73))},
			want:   []string{"Password is too long (maximum is 72 bytes)"},
		},
		{
			name: "confirmation mismatch",
			fields: UserFields{
				Username: "alice", Email: "alice@example.com",
				Password: ptr("secret123"), PasswordConfirmation: ptr("secret124"),
			},
			want: []string{"Password confirmation doesn't match Password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateUser(tt.fields, OnCreate)
			if len(tt.want) == 0 {
				assert.True(t, got.Valid(), got)
				return
			}
			assert.Equal(t, Violations(tt.want), got)
		})
	}
}

func TestValidateUser_UpdateWithoutPassword(t *testing.T) {
	got := ValidateUser(UserFields{Username: "alice", Email: "alice@example.com"}, OnUpdate)
	assert.True(t, got.Valid())

	got = ValidateUser(UserFields{Username: "alice", Email: "alice@example.com", Password: ptr("")}, OnUpdate)
	assert.Equal(t, Violations{"Password can't be blank"}, got)
}

func TestValidateTask(t *testing.T) {
	assert.True(t, ValidateTask(TaskFields{Title: "Write docs", Status: models.TaskStatusPending}).Valid())

	got := ValidateTask(TaskFields{Title: "", Status: models.TaskStatusPending})
	assert.Equal(t, Violations{"Title can't be blank"}, got)

	got = ValidateTask(TaskFields{Title: "   ", Status: models.TaskStatusPending})
	assert.Equal(t, Violations{"Title can't be blank"}, got)

	got = ValidateTask(TaskFields{Title: strings.Repeat("t", 255), Status: models.TaskStatusCompleted})
	assert.True(t, got.Valid())

	got = ValidateTask(TaskFields{Title: strings.Repeat("t", 256), Status: models.TaskStatusCompleted})
	assert.Equal(t, Violations{"Title is too long (maximum is 255 characters)"}, got)

	got = ValidateTask(TaskFields{Title: "ok", Status: "archived"})
	assert.Equal(t, Violations{"Status is not included in the list"}, got)
}

func TestValidateTask_CountsRunes(t *testing.T) {
	got := ValidateTask(TaskFields{Title: strings.Repeat("é", 255), Status: models.TaskStatusPending})
	assert.True(t, got.Valid())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}
