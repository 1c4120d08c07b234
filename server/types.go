package server

// StartRequest is the body of POST /api/recorder/start. Numeric fields are
// pointers so the validator can tell "absent" apart from zero; the client
// transmits frequency in Hertz (it converts from kHz itself).
type StartRequest struct {
	RecType   string   `json:"rec_type"`
	Frequency *float64 `json:"frequency"`
	Zoom      *float64 `json:"zoom"`
	Duration  *int     `json:"duration"`
	Interval  *int     `json:"interval"`
}

// ErrorResponse is the error body the polling client renders
type ErrorResponse struct {
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
}

// MessageResponse is a plain confirmation body
type MessageResponse struct {
	Message string `json:"message"`
}
