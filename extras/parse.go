// Package extras reads the key/value sidecar file written next to a native
// crash minidump.
//
// Three encodings are accepted and detected from the content:
//   - a JSON object mapping keys to values
//   - a single line of NUL-separated key=value segments
//   - the legacy layout, one key=value pair per line
//
// All values pass through Unescape once. Parsing never fails: unreadable,
// empty or malformed input yields an empty Map.
package extras

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pithecene-io/crashreporter/iox"
)

// Map holds the parsed extras. Keys are unique.
type Map map[string]string

// Format identifies the on-disk layout of an extras file.
type Format string

// Detected formats.
const (
	FormatUnknown Format = "unknown"
	FormatJSON    Format = "json"
	FormatNUL     Format = "nul"
	FormatLegacy  Format = "legacy"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Detect inspects data and reports which layout it uses.
// Extras files are text: content that is not valid UTF-8 is unknown.
// Otherwise detection only looks at shape.
func Detect(data []byte) Format {
	data = bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	switch {
	case len(data) == 0, !utf8.Valid(data):
		return FormatUnknown
	case data[0] == '{':
		return FormatJSON
	case bytes.IndexByte(data, 0) >= 0:
		return FormatNUL
	default:
		return FormatLegacy
	}
}

// Parse decodes extras content in any supported layout.
func Parse(data []byte) Map {
	m, _ := ParseWithFormat(data)
	return m
}

// ParseWithFormat decodes extras content and also returns the detected
// layout. The map is empty, never nil, when nothing could be parsed.
func ParseWithFormat(data []byte) (Map, Format) {
	format := Detect(data)
	data = bytes.TrimPrefix(data, utf8BOM)

	var pairs [][2]string
	switch format {
	case FormatJSON:
		pairs = jsonPairs(data)
	case FormatNUL:
		pairs = splitPairs(string(data), "\x00")
	case FormatLegacy:
		pairs = splitPairs(string(data), "\n")
	}

	m := make(Map, len(pairs))
	for _, kv := range pairs {
		m[kv[0]] = Unescape(kv[1])
	}
	return m, format
}

// Load reads and parses the extras file at path. On failure it returns an
// empty map together with the reason, so callers can log it; the map is
// usable either way.
func Load(path string) (Map, error) {
	if path == "" {
		return Map{}, fmt.Errorf("extras: no file given")
	}

	f, err := os.Open(path)
	if err != nil {
		return Map{}, fmt.Errorf("extras: open %s: %w", path, err)
	}
	defer iox.DiscardClose(f)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return Map{}, fmt.Errorf("extras: read %s: %w", path, err)
	}

	m, format := ParseWithFormat(buf.Bytes())
	if len(m) == 0 {
		return m, fmt.Errorf("extras: %s: no entries (format %s)", path, format)
	}
	return m, nil
}

// ReadFile is Load without the error.
func ReadFile(path string) Map {
	m, _ := Load(path)
	return m
}

// jsonPairs decodes a JSON object. Anything other than a single object
// yields no pairs.
func jsonPairs(data []byte) [][2]string {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	if dec.More() {
		return nil
	}

	pairs := make([][2]string, 0, len(obj))
	for k, raw := range obj {
		if !validKey(k) {
			continue
		}
		pairs = append(pairs, [2]string{k, jsonValue(raw)})
	}
	return pairs
}

// jsonValue renders a raw JSON value as an extras string: strings are
// decoded, null is empty, anything else keeps its compact JSON text.
func jsonValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

// splitPairs splits content into key=value records on sep. Whitespace
// around the key is dropped; the value is kept verbatim.
func splitPairs(content, sep string) [][2]string {
	content = strings.TrimRight(content, "\r\n\x00")
	records := strings.Split(content, sep)

	pairs := make([][2]string, 0, len(records))
	for _, rec := range records {
		rec = strings.TrimSuffix(rec, "\r")
		key, value, ok := strings.Cut(rec, "=")
		key = strings.TrimSpace(key)
		if !ok || !validKey(key) {
			continue
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs
}

// validKey rejects empty keys and keys with whitespace, control characters
// or invalid UTF-8, which only show up when the content is not an extras
// file at all.
func validKey(k string) bool {
	if k == "" || !utf8.ValidString(k) {
		return false
	}
	for _, r := range k {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
