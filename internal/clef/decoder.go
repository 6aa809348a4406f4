package clef

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fastjson"
)

// ContentType is the media type Serilog sinks send CLEF payloads with
const ContentType = "application/vnd.serilog.clef"

var utf8BOM = []byte("\ufeff")

// IsCLEFContentType reports whether a Content-Type header declares the CLEF media type
// (parameters such as charset are allowed)
func IsCLEFContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), ContentType)
}

// Record is one decoded CLEF object
type Record struct {
	Fields domain.Object // Top-level members in source order
	Raw    string        // Object text as received
	Line   int           // 1-based line number (NDJSON) or array position
}

// SkipFunc is called for every line or array element that could not be decoded
type SkipFunc func(line int, err error)

// Decoder turns CLEF request bodies into records.
// It is safe for concurrent use.
type Decoder struct {
	parsers fastjson.ParserPool
	onSkip  SkipFunc
}

// NewDecoder creates a decoder; onSkip may be nil
func NewDecoder(onSkip SkipFunc) *Decoder {
	return &Decoder{onSkip: onSkip}
}

// Decode returns a lazy sequence of records from a CLEF body.
//
// The body is first parsed as a whole: a JSON array yields its object elements and a single
// object yields itself. Otherwise the body is treated as newline-delimited JSON; blank lines are
// ignored and lines that are not valid JSON objects are skipped without stopping the sequence.
func (d *Decoder) Decode(body []byte) iter.Seq[Record] {
	body = bytes.TrimPrefix(body, utf8BOM)

	return func(yield func(Record) bool) {
		p := d.parsers.Get()
		defer d.parsers.Put(p)

		if v, err := p.ParseBytes(body); err == nil {
			switch v.Type() {
			case fastjson.TypeArray:
				items, _ := v.Array()
				for i, item := range items {
					if item.Type() != fastjson.TypeObject {
						d.skip(i+1, fmt.Errorf("array element is %s, not an object", item.Type()))
						continue
					}
					if !yield(newRecord(item, item.String(), i+1)) {
						return
					}
				}
				return
			case fastjson.TypeObject:
				yield(newRecord(v, string(bytes.TrimSpace(body)), 1))
				return
			}
		}

		lineNo := 0
		rest := body
		for len(rest) > 0 {
			var line []byte
			if idx := bytes.IndexByte(rest, '\n'); idx >= 0 {
				line, rest = rest[:idx], rest[idx+1:]
			} else {
				line, rest = rest, nil
			}
			lineNo++

			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			v, err := p.ParseBytes(line)
			if err != nil {
				d.skip(lineNo, err)
				continue
			}
			if v.Type() != fastjson.TypeObject {
				d.skip(lineNo, fmt.Errorf("line is %s, not an object", v.Type()))
				continue
			}

			if !yield(newRecord(v, string(line), lineNo)) {
				return
			}
		}
	}
}

func (d *Decoder) skip(line int, err error) {
	log.Warn().
		Err(err).
		Int("line", line).
		Msg("Skipping invalid CLEF line")

	if d.onSkip != nil {
		d.onSkip(line, err)
	}
}

func newRecord(v *fastjson.Value, raw string, line int) Record {
	fields, _ := domain.FromFastJSON(v).(domain.Object)
	return Record{
		Fields: fields,
		Raw:    raw,
		Line:   line,
	}
}
