package client

// ProcessStatus mirrors the daemon's status payload. PID and LastError
// are null when the process is not running or has no recorded error.
type ProcessStatus struct {
	Running   bool    `json:"running"`
	LastError *string `json:"lastError"`
	PID       *int    `json:"pid"`
}

// UpdateResult mirrors the daemon's response to env writes. Success
// reflects the write; Error carries the managed process's error state
// when a restart followed the write.
type UpdateResult struct {
	Success   bool     `json:"success"`
	Error     *string  `json:"error"`
	Restarted bool     `json:"restarted"`
	Updated   []string `json:"updated,omitempty"`
}

// VariableSchema mirrors the daemon's schema payload.
type VariableSchema struct {
	Description string `json:"description"`
	Default     string `json:"defaultValue"`
	Commented   bool   `json:"commented"`
}

// ErrorResponse covers the error envelopes the daemon emits on 4xx/5xx.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"message"`
}

// Message returns the most specific error text available.
func (e ErrorResponse) Message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Detail
}
