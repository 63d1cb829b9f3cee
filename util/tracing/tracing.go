package tracing

// Context carries the identifiers attached to every request by the tracing middleware.
type Context struct {
	RequestID     string `json:"request_id"`
	RequestSource string `json:"request_source"`
}

func (c Context) String() string {
	return "request_id=" + c.RequestID + " source=" + c.RequestSource
}
