package values

type contextKey string

const (
	ContextTracingKey = contextKey("tracing")
	ContextUserKey    = contextKey("user")
)

const (
	HeaderRequestSource = "X-Request-Source"
	HeaderRequestID     = "X-Request-ID"
)

// response statuses
const (
	Success         = "success"
	Created         = "created"
	Error           = "error"
	Failed          = "failed"
	BadRequestBody  = "bad_request_body"
	Unprocessable   = "unprocessable"
	NotAllowed      = "not_allowed"
	Conflict        = "conflict"
	NotFound        = "not_found"
	NotAuthorised   = "not_authorised"
	TokenExpired    = "token_expired"
	TooManyRequests = "too_many_requests"
	Unavailable     = "unavailable"
)

const SystemErr = "something went wrong, please try again"

// user roles
const (
	RoleCitizen   = "citizen"
	RoleAuthority = "authority"
	RoleAdmin     = "admin"
)

// report statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"
)

// report priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// waste severity levels reported by the detection service
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	AuthProviderEmail  = "email"
	AuthProviderGoogle = "google"
)
