// SPDX-License-Identifier: GPL-3.0-or-later

package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFindsMinMax(t *testing.T) {
	input := `{"timing":{"started":"2026-01-01T00:00:00Z","finished":"2026-01-01T00:00:05Z"}}
{"timing":{"started":"2026-01-01T00:01:00Z","finished":"2026-01-01T00:02:00Z"}}
`
	m, err := Derive(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:00:00Z", m.Start.Format("2006-01-02T15:04:05Z"))
	assert.Equal(t, "2026-01-01T00:02:00Z", m.End.Format("2006-01-02T15:04:05Z"))
	assert.Equal(t, 2, m.Count)
}

func TestWriteSidecarCreatesFile(t *testing.T) {
	dir := t.TempDir()
	resultPath := filepath.Join(dir, "result.ndjson")
	require.NoError(t, os.WriteFile(resultPath, []byte(
		`{"timing":{"started":"2026-01-01T00:00:00Z","finished":"2026-01-01T00:00:01Z"}}`+"\n"), 0o644))

	m, err := WriteSidecar(resultPath)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count)

	contents, err := os.ReadFile(SidecarPath(resultPath))
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"count": 1`)
}
