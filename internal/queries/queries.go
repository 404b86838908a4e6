// Package queries provides the named-statement registry backing the record
// store. Statements live in an embedded queries.sql resource and are resolved
// by logical name at runtime, keeping SQL out of Go source.
//
// Two source formats are accepted:
//
//   - A JSON object mapping name to statement text.
//   - A plain-text document of blocks introduced by "-- name: <query_name>"
//     marker lines; the following non-comment lines are joined into a single
//     statement.
//
// A source that looks like JSON (leading "{") but fails to decode is re-parsed
// as plain text rather than rejected outright. Only a source yielding zero
// statements is a configuration error.
package queries

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

//go:embed queries.sql
var embeddedSource string

var (
	// ErrNoQueries indicates the source yielded no named statements.
	// Fatal at startup: the store cannot operate without its statements.
	ErrNoQueries = errors.New("no named queries found")

	// ErrUnknownQuery indicates a lookup for a name the registry does not hold.
	ErrUnknownQuery = errors.New("unknown query")
)

// nameMarker introduces a named block in the plain-text format.
const nameMarker = "-- name:"

// Registry resolves logical query names to parameterized SQL statements.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	statements map[string]string
}

// Load parses the embedded queries.sql resource into a Registry.
func Load() (*Registry, error) {
	return Parse(embeddedSource)
}

// Parse builds a Registry from raw source text.
//
// If the trimmed source starts with "{" it is decoded as a JSON object first;
// a decode failure falls back to plain-text parsing of the same content.
func Parse(src string) (*Registry, error) {
	trimmed := strings.TrimSpace(src)

	if strings.HasPrefix(trimmed, "{") {
		var m map[string]string
		if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
			if len(m) == 0 {
				return nil, fmt.Errorf("%w: empty JSON object", ErrNoQueries)
			}
			return &Registry{statements: m}, nil
		}
		// Fall through to plain-text parsing of the same content.
	}

	m := parseText(src)
	if len(m) == 0 {
		return nil, ErrNoQueries
	}
	return &Registry{statements: m}, nil
}

// parseText parses "-- name:" delimited blocks. A new marker flushes the
// previous block; the trailing block is flushed at end of input. Comment
// lines ("--") and blank lines inside a block are skipped.
func parseText(src string) map[string]string {
	statements := make(map[string]string)

	var name string
	var lines []string

	flush := func() {
		if name != "" && len(lines) > 0 {
			statements[name] = strings.TrimSpace(strings.Join(lines, " "))
		}
	}

	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, nameMarker):
			flush()
			name = strings.TrimSpace(strings.TrimPrefix(line, nameMarker))
			lines = nil
		case line == "" || strings.HasPrefix(line, "--"):
			// skip
		default:
			lines = append(lines, line)
		}
	}
	flush()

	return statements
}

// Get resolves a logical name to its statement text.
func (r *Registry) Get(name string) (string, error) {
	stmt, ok := r.statements[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownQuery, name)
	}
	return stmt, nil
}

// Len reports how many statements the registry holds.
func (r *Registry) Len() int {
	return len(r.statements)
}
