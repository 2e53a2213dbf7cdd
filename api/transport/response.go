package transport

import "encoding/json"

// Envelope wraps every response body.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String is best-effort JSON for log lines.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// ErrorBody is the error payload; Message is safe to show to the caller.
type ErrorBody struct {
	Message string `json:"message"`
}

// TaskPayload is the `{task}` shape returned by single-task endpoints.
type TaskPayload struct {
	Task interface{} `json:"task"`
}

type UserPayload struct {
	User interface{} `json:"user"`
}

// ListMeta describes the page a list response covers.
type ListMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}
