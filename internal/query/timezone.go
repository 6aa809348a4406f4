package query

import (
	"strings"
	"time"

	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/rs/zerolog/log"
)

// ConvertTimezone rewrites event timestamps into zone and returns the location used.
// Unknown zones are logged and leave the timestamps in UTC.
func ConvertTimezone(events []*domain.Event, zone string) *time.Location {
	zone = strings.TrimSpace(zone)
	if zone == "" || strings.EqualFold(zone, "UTC") {
		return time.UTC
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		log.Warn().Err(err).Str("time_zone", zone).Msg("Unknown time zone, falling back to UTC")
		return time.UTC
	}

	for _, evt := range events {
		if evt != nil {
			evt.Timestamp = evt.Timestamp.In(loc)
		}
	}
	return loc
}
