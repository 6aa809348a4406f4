package normalizer

import (
	"errors"
	"strings"
	"time"

	"github.com/SteelMorgan/serilog-dashboard/internal/clef"
	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/tenant"
	"github.com/google/uuid"
)

// ErrEmptyRecord is returned for CLEF objects without any members
var ErrEmptyRecord = errors.New("empty CLEF record")

// Reserved CLEF keys
const (
	keyTimestamp       = "@t"
	keyLevel           = "@l"
	keyMessage         = "@m"
	keyMessageTemplate = "@mt"
	keyException       = "@x"
	keyExceptionAlt    = "@mx"

	// Some producers duplicate the template as a plain property
	legacyTemplateKey = "MessageTemplate"
)

// timestampLayouts are tried in order; layouts without an offset are read as UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// EventNormalizer converts decoded CLEF records into events.
// It holds no per-call state and is safe for concurrent use.
type EventNormalizer struct {
	now   func() time.Time
	newID func() string
}

// Option configures an EventNormalizer
type Option func(*EventNormalizer)

// WithClock overrides the clock used for events without a usable @t
func WithClock(now func() time.Time) Option {
	return func(n *EventNormalizer) {
		n.now = now
	}
}

// WithIDGenerator overrides event id generation
func WithIDGenerator(newID func() string) Option {
	return func(n *EventNormalizer) {
		n.newID = newID
	}
}

// NewEventNormalizer creates a normalizer using the wall clock and random UUIDs
func NewEventNormalizer(opts ...Option) *EventNormalizer {
	n := &EventNormalizer{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds an event owned by the given tenant.
//
// @m wins over @mt; the template is expanded only when no rendered message is present.
// Keys starting with a single @ are reserved and never become properties; @@name is the
// CLEF escape for a property literally named @name.
func (n *EventNormalizer) Normalize(rec clef.Record, t tenant.Tenant) (*domain.Event, error) {
	if len(rec.Fields) == 0 {
		return nil, ErrEmptyRecord
	}

	evt := &domain.Event{
		ClientID:   t.ClientID,
		InstanceID: t.InstanceID,
		EventID:    n.newID(),
		Raw:        rec.Raw,
	}

	var (
		message string
		hasTime bool
		props   = make(domain.Properties, len(rec.Fields))
	)

	for _, m := range rec.Fields {
		switch m.Key {
		case keyTimestamp:
			if s, ok := m.Value.(domain.Text); ok {
				if ts, ok := parseTimestamp(string(s)); ok {
					evt.Timestamp = ts
					hasTime = true
				}
			}
		case keyLevel:
			evt.Level = textPtr(m.Value)
		case keyMessage:
			message = domain.Deref(textPtr(m.Value))
		case keyMessageTemplate:
			evt.MessageTemplate = textPtr(m.Value)
		case keyException, keyExceptionAlt:
			evt.ExceptionInformation = renderPtr(m.Value)
		case legacyTemplateKey:
			// not a property
		default:
			key := m.Key
			if strings.HasPrefix(key, "@@") {
				key = key[1:]
			} else if strings.HasPrefix(key, "@") {
				continue
			}
			props[key] = m.Value
		}
	}

	if !hasTime {
		evt.Timestamp = n.now().UTC()
	}

	if len(props) > 0 {
		evt.Properties = props
	}

	switch {
	case message != "":
		evt.Message = &message
	case evt.MessageTemplate != nil:
		expanded := ExpandTemplate(*evt.MessageTemplate, evt.Properties)
		evt.Message = &expanded
	}

	return evt, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// textPtr returns non-empty string values; other kinds count as absent
func textPtr(v domain.Value) *string {
	if s, ok := v.(domain.Text); ok {
		return domain.StringPtr(string(s))
	}
	return nil
}

// renderPtr renders any non-null value
func renderPtr(v domain.Value) *string {
	switch v.(type) {
	case nil, domain.Null:
		return nil
	}
	return domain.StringPtr(domain.Render(v))
}
