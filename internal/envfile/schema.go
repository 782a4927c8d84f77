package envfile

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ExampleSuffix names the schema file next to the env file by
// convention: <envfile>.example.
const ExampleSuffix = ".example"

// VariableSchema describes one variable declared in the example file.
type VariableSchema struct {
	Description string `json:"description"`
	Default     string `json:"defaultValue"`
	Commented   bool   `json:"commented"`
}

var bareIdentRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ExamplePath returns the conventional example-file path for envPath.
func ExamplePath(envPath string) string {
	return envPath + ExampleSuffix
}

// ParseSchema extracts per-variable metadata from the example file.
// Comment lines directly above a declaration become its description;
// a blank line resets the pending description. A comment line whose
// remainder is itself a KEY=value pair (or a bare uppercase
// identifier) is treated as a commented-out declaration rather than
// prose. A missing or empty file yields an empty mapping, never an
// error.
func ParseSchema(examplePath string) map[string]VariableSchema {
	out := make(map[string]VariableSchema)
	b, err := os.ReadFile(filepath.Clean(examplePath))
	if err != nil {
		return out
	}
	var pending []string
	for _, raw := range strings.Split(string(b), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			pending = nil
			continue
		}
		if strings.HasPrefix(line, "#") {
			rest := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if k, v, ok := splitPair(rest); ok {
				out[k] = VariableSchema{
					Description: strings.Join(pending, "\n"),
					Default:     unquote(v),
					Commented:   true,
				}
				pending = nil
				continue
			}
			if bareIdentRe.MatchString(rest) {
				out[rest] = VariableSchema{
					Description: strings.Join(pending, "\n"),
					Commented:   true,
				}
				pending = nil
				continue
			}
			pending = append(pending, rest)
			continue
		}
		// Non-comment line: a valid pair materializes an entry; either
		// way the pending description belongs to nothing after this.
		if k, v, ok := splitPair(line); ok {
			out[k] = VariableSchema{
				Description: strings.Join(pending, "\n"),
				Default:     unquote(v),
			}
		}
		pending = nil
	}
	return out
}
