package constants

// Context keys shared between middleware and handlers
const (
	ContextKeyUserID    = "user_id"
	ContextKeyRequestID = "request_id"
)

// HTTP
const (
	HeaderRequestID   = "X-Request-ID"
	SessionCookieName = "taskflow_session"
	APIVersionPrefix  = "/api/v1"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 25
	MaxPageSize     = 100
	MaxPage         = 1_000_000
)

// Field limits
const (
	UsernameMinLength = 3
	UsernameMaxLength = 50
	TitleMaxLength    = 255
	PasswordMaxBytes  = 72
)

// Background jobs
const (
	MailQueue          = "mailers"
	DefaultMailRetries = 3
)
