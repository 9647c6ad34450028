package export

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicFile_Commit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	f, err := CreateAtomic(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())

	_, err = f.WriteString("new")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "destination must not change before commit")

	require.NoError(t, f.Commit())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	f.Abort()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Error(t, f.Commit())
}

func TestAtomicFile_Abort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")

	f, err := CreateAtomic(path)
	require.NoError(t, err)
	_, err = f.WriteString("partial")
	require.NoError(t, err)
	f.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateAtomic_MissingDirectory(t *testing.T) {
	_, err := CreateAtomic(filepath.Join(t.TempDir(), "missing", "out.json"))
	assert.Error(t, err)
}

func TestAtomicFile_CommitMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not supported on windows")
	}

	tests := []struct {
		name     string
		existing os.FileMode
		expected os.FileMode
	}{
		{name: "new destination", expected: 0o644},
		{name: "keeps readable mode", existing: 0o644, expected: 0o644},
		{name: "keeps group mode", existing: 0o640, expected: 0o640},
		{name: "keeps private mode", existing: 0o600, expected: 0o600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hosts.json")
			if tt.existing != 0 {
				require.NoError(t, os.WriteFile(path, []byte("old"), tt.existing))
				require.NoError(t, os.Chmod(path, tt.existing))
			}

			f, err := CreateAtomic(path)
			require.NoError(t, err)
			_, err = f.WriteString("new")
			require.NoError(t, err)
			require.NoError(t, f.Commit())

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, info.Mode().Perm())
		})
	}
}
