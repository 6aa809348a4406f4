package normalizer

import (
	"strings"

	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/grafana/regexp"
)

// tokenPattern matches {name} and {name:format}. The format part is recognized but not applied.
var tokenPattern = regexp.MustCompile(`\{([^{}:]+)(?::[^{}]+)?\}`)

// ExpandTemplate substitutes message template tokens with rendered property values.
// Tokens without a matching property are left in place, braces included.
func ExpandTemplate(template string, props domain.Properties) string {
	if template == "" || len(props) == 0 {
		return template
	}

	matches := tokenPattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	last := 0

	for _, m := range matches {
		value, ok := lookupToken(template[m[2]:m[3]], props)
		if !ok {
			continue
		}
		b.WriteString(template[last:m[0]])
		b.WriteString(domain.Render(value))
		last = m[1]
	}
	b.WriteString(template[last:])

	return b.String()
}

// lookupToken resolves a token against properties by its literal name.
// Capturing hints and alignment are part of the name, so {@user} never matches "user".
func lookupToken(token string, props domain.Properties) (domain.Value, bool) {
	v, ok := props[token]
	return v, ok
}
