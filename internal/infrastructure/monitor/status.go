package monitor

import "time"

type Status struct {
	PostgreSQL     bool              `json:"postgresql"`
	Redis          bool              `json:"redis"`
	Journal        bool              `json:"journal"`
	JournalBacklog int               `json:"journal_backlog"`
	Errors         map[string]string `json:"errors,omitempty"`
	LastCheck      time.Time         `json:"last_check"`
}

// Healthy reports whether every dependency needed to serve task commands is reachable.
func (s Status) Healthy() bool {
	return s.PostgreSQL && s.Redis
}

func (s *Status) setError(name string, err error) {
	if s.Errors == nil {
		s.Errors = make(map[string]string)
	}
	s.Errors[name] = err.Error()
}
