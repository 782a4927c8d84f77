package envfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Map holds the decoded contents of an environment file (KEY -> VALUE).
type Map map[string]string

// Decode reads the environment file at path and returns its entries.
// A missing file is not an error; it yields an empty map. Malformed
// lines (no delimiter, empty key, or a space touching the delimiter)
// are silently skipped so that prose lines in hand-edited files do not
// break the parse.
func Decode(path string) (Map, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return Map{}, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	m := make(Map)
	for _, line := range strings.Split(string(b), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		k, v, ok := splitPair(trimmed)
		if !ok {
			continue
		}
		m[k] = unquote(v)
	}
	return m, nil
}

// Encode writes one KEY=VALUE line per entry, keys sorted so the file
// is stable across writes. Values containing a space, the delimiter,
// or '#' are double-quoted with embedded double quotes escaped.
//
// The escaping is asymmetric: Decode strips the surrounding quote pair
// but performs no unescaping, so a value containing both a quotable
// character and a double quote does not survive an encode/decode
// round trip byte for byte.
func Encode(path string, m Map) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(quoteIfNeeded(m[k]))
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Clean(path), []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// splitPair splits a line on the first '='. It reports ok=false for
// lines without a delimiter, with an empty key, or where the character
// immediately before or after the delimiter is a space (the
// malformed-line rule that tolerates prose in comments-gone-wrong).
func splitPair(line string) (string, string, bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	if i > 0 && line[i-1] == ' ' {
		return "", "", false
	}
	if i+1 < len(line) && line[i+1] == ' ' {
		return "", "", false
	}
	k := strings.TrimSpace(line[:i])
	if k == "" {
		return "", "", false
	}
	return k, strings.TrimSpace(line[i+1:]), true
}

// unquote strips one pair of matching single or double quotes wrapping
// the whole value. No escape processing happens beyond that.
func unquote(v string) string {
	if n := len(v); n >= 2 {
		if (v[0] == '"' && v[n-1] == '"') || (v[0] == '\'' && v[n-1] == '\'') {
			return v[1 : n-1]
		}
	}
	return v
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " =#") {
		return "\"" + strings.ReplaceAll(v, "\"", "\\\"") + "\""
	}
	return v
}
