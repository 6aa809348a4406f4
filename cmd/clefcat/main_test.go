package main

import (
	"bytes"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/SteelMorgan/serilog-dashboard/internal/observability"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func newTestPrinter(buf *bytes.Buffer, zone string, props bool) *printer {
	color.NoColor = true
	return newPrinter(buf, zone, props)
}

func TestPrinter(t *testing.T) {
	tests := []struct {
		name  string
		zone  string
		props bool
		body  string
		want  string
	}{
		{
			name:  "template and properties",
			zone:  "UTC",
			props: true,
			body:  `{"@t":"2024-01-01T00:00:00Z","@mt":"Hello {name}","name":"World","count":3}`,
			want:  "[2024-01-01T00:00:00Z] Information: Hello World\n    count = 3\n    name = World\n",
		},
		{
			name: "level and exception",
			zone: "UTC",
			body: `{"@t":"2024-01-01T00:00:00Z","@l":"Error","@m":"boom","@x":"System.Exception: boom"}`,
			want: "[2024-01-01T00:00:00Z] Error: boom\nSystem.Exception: boom\n",
		},
		{
			name: "time zone",
			zone: "Asia/Tokyo",
			body: `{"@t":"2024-01-01T00:00:00Z","@m":"tokyo"}`,
			want: "[2024-01-01T09:00:00+09:00] Information: tokyo\n",
		},
		{
			name: "skips garbage",
			zone: "UTC",
			body: "garbage\n{\"@t\":\"2024-01-01T00:00:00Z\",\"@m\":\"ok\"}\n{}",
			want: "[2024-01-01T00:00:00Z] Information: ok\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newTestPrinter(&buf, tt.zone, tt.props).print([]byte(tt.body))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPrinter_UnknownZoneWarnsOnceOnDiagnostics(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var diag, out bytes.Buffer
	observability.InitConsoleLogger(&diag, "warn")

	p := newTestPrinter(&out, "Not/AZone", false)
	p.print([]byte(strings.Join([]string{
		`{"@t":"2024-01-01T00:00:00Z","@m":"one"}`,
		`{"@t":"2024-01-01T00:00:01Z","@m":"two"}`,
		`{"@t":"2024-01-01T00:00:02Z","@m":"three"}`,
	}, "\n")))

	assert.Equal(t, 1, strings.Count(diag.String(), "Unknown time zone"))
	assert.Equal(t, "[2024-01-01T00:00:00Z] Information: one\n"+
		"[2024-01-01T00:00:01Z] Information: two\n"+
		"[2024-01-01T00:00:02Z] Information: three\n", out.String())
}
