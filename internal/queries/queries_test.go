package queries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextBlocks(t *testing.T) {
	src := `-- statements for testing
-- name: get_widget
SELECT id, name
FROM widgets
WHERE id = $1;

-- name: delete_widget
-- removes one row
DELETE FROM widgets WHERE id = $1;
`

	r, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	stmt, err := r.Get("get_widget")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM widgets WHERE id = $1;", stmt)

	stmt, err = r.Get("delete_widget")
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM widgets WHERE id = $1;", stmt)
}

func TestParseFlushesTrailingBlock(t *testing.T) {
	src := "-- name: last_one\nSELECT 1"

	r, err := Parse(src)
	require.NoError(t, err)

	stmt, err := r.Get("last_one")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", stmt)
}

func TestParseNewMarkerFlushesPrevious(t *testing.T) {
	// The second marker arrives before the first block ended; the first
	// block must keep only its own lines.
	src := `-- name: first
SELECT 'a'
-- name: second
SELECT 'b'
`

	r, err := Parse(src)
	require.NoError(t, err)

	first, err := r.Get("first")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'a'", first)

	second, err := r.Get("second")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'b'", second)
}

func TestParseJSONSource(t *testing.T) {
	src := `{"get_widget": "SELECT * FROM widgets WHERE id = $1"}`

	r, err := Parse(src)
	require.NoError(t, err)

	stmt, err := r.Get("get_widget")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM widgets WHERE id = $1", stmt)
}

func TestParseInvalidJSONFallsBackToText(t *testing.T) {
	// Looks structured (leading brace) but is not valid JSON; the same
	// content still parses as marker blocks.
	src := `{ this is not json
-- name: fallback_query
SELECT 42;
`

	r, err := Parse(src)
	require.NoError(t, err)

	stmt, err := r.Get("fallback_query")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 42;", stmt)
}

func TestParseNoQueries(t *testing.T) {
	for _, src := range []string{"", "-- just a comment\n", "SELECT 1; -- no marker\n"} {
		_, err := Parse(src)
		assert.ErrorIs(t, err, ErrNoQueries, "source %q", src)
	}
}

func TestParseMarkerWithoutBodyIsSkipped(t *testing.T) {
	src := `-- name: empty_block
-- name: real_block
SELECT 1;
`

	r, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	_, err = r.Get("empty_block")
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestGetUnknownQuery(t *testing.T) {
	r, err := Parse("-- name: known\nSELECT 1;")
	require.NoError(t, err)

	_, err = r.Get("unknown")
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestLoadEmbeddedSource(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	// Every statement the record store resolves must be present.
	names := []string{
		"insert_patient",
		"resolve_patient_ids",
		"insert_medical_event",
		"insert_new_soap_note",
		"find_similar_chunks",
		"find_patient_by_details",
		"get_patient_by_id",
		"get_doctor_by_username",
		"insert_doctor",
		"insert_query_log",
		"insert_audit_log",
	}
	for _, name := range names {
		stmt, err := r.Get(name)
		require.NoError(t, err, "statement %q", name)
		assert.NotEmpty(t, stmt)
	}
}
