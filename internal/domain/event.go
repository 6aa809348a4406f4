package domain

import "time"

// Event represents a single stored log event (Serilog CLEF event after normalization)
type Event struct {
	ClientID             int64      `json:"client_id"`
	InstanceID           int64      `json:"instance_id"`
	Timestamp            time.Time  `json:"timestamp"` // UTC in storage
	Level                *string    `json:"level"`     // Information, Warning, Error...; nil = unclassified
	Message              *string    `json:"message"`
	MessageTemplate      *string    `json:"message_template"`
	Properties           Properties `json:"properties"`
	EventID              string     `json:"event_id"`
	ExceptionInformation *string    `json:"exception_information"`
	Raw                  string     `json:"-"` // Original CLEF object, persisted in the raw column
}

// StringPtr returns a pointer to s, or nil if s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
