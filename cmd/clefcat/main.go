// Command clefcat prints CLEF events the way a console sink would.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/SteelMorgan/serilog-dashboard/internal/clef"
	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/normalizer"
	"github.com/SteelMorgan/serilog-dashboard/internal/observability"
	"github.com/SteelMorgan/serilog-dashboard/internal/query"
	"github.com/SteelMorgan/serilog-dashboard/internal/tenant"
	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

type catCommand struct {
	files      *[]string
	timeZone   *string
	properties *bool
	noColor    *bool
	logLevel   *string
}

func main() {
	app := kingpin.New("clefcat", "Render Serilog CLEF events from files or stdin.")
	cmd := &catCommand{
		files:      app.Arg("file", "CLEF files to read; stdin when omitted.").ExistingFiles(),
		timeZone:   app.Flag("time-zone", "IANA zone for printed timestamps.").Default("UTC").String(),
		properties: app.Flag("properties", "Print event properties.").Default("true").Bool(),
		noColor:    app.Flag("no-color", "Disable colored output.").Bool(),
		logLevel:   app.Flag("log-level", "Diagnostic log level.").Default("warn").String(),
	}
	app.Action(cmd.run)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func (cmd *catCommand) run(*kingpin.ParseContext) error {
	observability.InitConsoleLogger(os.Stderr, *cmd.logLevel)
	if *cmd.noColor {
		color.NoColor = true
	}

	p := newPrinter(os.Stdout, *cmd.timeZone, *cmd.properties)

	if len(*cmd.files) == 0 {
		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		p.print(body)
		return nil
	}

	for _, name := range *cmd.files {
		body, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		p.print(body)
	}
	return nil
}

type printer struct {
	out        io.Writer
	normalizer *normalizer.EventNormalizer
	decoder    *clef.Decoder
	loc        *time.Location
	properties bool
}

// newPrinter resolves zone once; an unknown zone warns and prints UTC
func newPrinter(out io.Writer, zone string, properties bool) *printer {
	return &printer{
		out:        out,
		normalizer: normalizer.NewEventNormalizer(),
		decoder:    clef.NewDecoder(nil),
		loc:        query.ConvertTimezone(nil, zone),
		properties: properties,
	}
}

// print renders every decodable record of body
func (p *printer) print(body []byte) {
	for rec := range p.decoder.Decode(body) {
		ev, err := p.normalizer.Normalize(rec, tenant.Tenant{})
		if err != nil {
			log.Warn().Err(err).Int("line", rec.Line).Msg("Skipping CLEF record")
			continue
		}
		ev.Timestamp = ev.Timestamp.In(p.loc)
		fmt.Fprint(p.out, p.format(ev))
	}
}

var levelColors = map[string]*color.Color{
	"verbose":     color.New(color.FgHiBlack),
	"debug":       color.New(color.FgHiBlack),
	"information": color.New(color.FgCyan),
	"warning":     color.New(color.FgYellow),
	"error":       color.New(color.FgRed),
	"fatal":       color.New(color.FgRed, color.Bold),
}

// format renders "[timestamp] level: message", then exception and properties lines
func (p *printer) format(ev *domain.Event) string {
	var b strings.Builder

	level := domain.Deref(ev.Level)
	if level == "" {
		level = "Information"
	}
	if c, ok := levelColors[strings.ToLower(level)]; ok {
		level = c.Sprint(level)
	}

	fmt.Fprintf(&b, "[%s] %s: %s\n", ev.Timestamp.Format(time.RFC3339Nano), level, domain.Deref(ev.Message))

	if ev.ExceptionInformation != nil {
		b.WriteString(*ev.ExceptionInformation)
		b.WriteString("\n")
	}

	if p.properties && len(ev.Properties) > 0 {
		keys := make([]string, 0, len(ev.Properties))
		for k := range ev.Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    %s = %s\n", k, domain.Render(ev.Properties[k]))
		}
	}

	return b.String()
}
