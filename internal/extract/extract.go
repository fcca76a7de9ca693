package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	declPattern = regexp.MustCompile(`\b(?:var|let|const)\s+([a-zA-Z_$][\w$]*)\s*=\s*`)
	intPattern  = regexp.MustCompile(`^-?\d+$`)
)

// Variables maps a declared script variable name to its coerced value.
type Variables map[string]Value

// Lookup returns the named variable. Callers must treat a missing
// variable as a parse failure of the page, not as an empty value.
func (v Variables) Lookup(name string) (Value, bool) {
	val, ok := v[name]
	return val, ok
}

// Extract parses html and returns every variable declared in its script
// blocks. Blocks are processed in document order, so a later declaration
// of the same name overwrites an earlier one. Declarations without a
// terminating semicolon are dropped.
func Extract(html string) (Variables, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	vars := make(Variables)
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		extractScript(strings.TrimSpace(s.Text()), vars)
	})
	return vars, nil
}

func extractScript(script string, vars Variables) {
	for _, m := range declPattern.FindAllStringSubmatchIndex(script, -1) {
		name := script[m[2]:m[3]]
		raw, ok := readValue(script, m[1])
		if !ok {
			continue
		}
		vars[name] = coerce(raw)
	}
}

// readValue scans forward from start and returns the text up to the first
// semicolon found outside any string literal at bracket depth <= 0.
func readValue(script string, start int) (string, bool) {
	var (
		depth  int
		inStr  byte
		escape bool
	)

	for i := start; i < len(script); i++ {
		c := script[i]
		switch {
		case escape:
			escape = false
		case c == '\\':
			escape = true
		case inStr != 0:
			if c == inStr {
				inStr = 0
			}
		case c == '"' || c == '\'':
			inStr = c
		case c == '{' || c == '[' || c == '(':
			depth++
		case c == '}' || c == ']' || c == ')':
			depth--
		case c == ';' && depth <= 0:
			return strings.TrimSpace(script[start:i]), true
		}
	}
	return "", false
}

// coerce converts a raw declaration value. Anything that fails to parse
// is kept as the raw string.
func coerce(raw string) Value {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, `"`) || strings.HasPrefix(raw, `'`):
		if s, ok := parseStringLiteral(raw); ok {
			return StringValue(s)
		}
	case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		if v, err := parseJSON(raw); err == nil {
			return v
		}
	case strings.EqualFold(raw, "true"):
		return BoolValue(true)
	case strings.EqualFold(raw, "false"):
		return BoolValue(false)
	case raw == "null":
		return NullValue()
	case intPattern.MatchString(raw):
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return IntValue(i)
		}
	}
	return StringValue(raw)
}

// parseStringLiteral normalizes a single- or double-quoted literal to a
// JSON string and decodes it.
func parseStringLiteral(raw string) (string, bool) {
	if len(raw) < 2 || raw[len(raw)-1] != raw[0] {
		return "", false
	}
	quote := raw[0]
	inner := raw[1 : len(raw)-1]

	var b strings.Builder
	b.Grow(len(raw) + 2)
	b.WriteByte('"')
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\':
			if i+1 >= len(inner) {
				return "", false
			}
			i++
			if inner[i] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(inner[i])
			}
		case c == quote:
			return "", false
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')

	var s string
	if err := json.Unmarshal([]byte(b.String()), &s); err != nil {
		return "", false
	}
	return s, true
}
