package od

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFixture(t *testing.T) {
	path := writeFixture(t, `
[1008]
name = DeviceName
type = 0x0A

[1F50.1]
name = ProgramData
type = 0x02
`)

	dict, err := LoadFixture(path)
	require.NoError(t, err)

	v, ok := dict.Lookup(0x1008, 0)
	require.True(t, ok)
	assert.Equal(t, "DeviceName", v.Name)
	assert.Equal(t, VISIBLE_STRING, v.DataType)

	v, ok = dict.Lookup(0x1F50, 1)
	require.True(t, ok)
	assert.Equal(t, "ProgramData", v.Name)
	assert.True(t, v.ForcesSegmented())
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}
