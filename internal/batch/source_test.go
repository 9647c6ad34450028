package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanexport/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scans", "b.xml"), "b")
	writeFile(t, filepath.Join(dir, "scans", "a.xml"), "a")
	writeFile(t, filepath.Join(dir, "scans", "notes.txt"), "n")
	writeFile(t, filepath.Join(dir, "scans", "nested", "c.xml"), "c")
	writeFile(t, filepath.Join(dir, "other", "z.xml"), "z")
	writeFile(t, filepath.Join(dir, "other", "y.xml"), "y")

	missing := filepath.Join(dir, "missing.xml")
	sources, err := Discover([]string{
		filepath.Join(dir, "scans"),
		filepath.Join(dir, "other", "*.xml"),
		missing,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "scans", "a.xml"),
		filepath.Join(dir, "scans", "b.xml"),
		filepath.Join(dir, "other", "y.xml"),
		filepath.Join(dir, "other", "z.xml"),
		missing,
	}, Names(sources))
}

func TestDiscover_Pattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.xml"), "a")
	writeFile(t, filepath.Join(dir, "b.nmap"), "b")

	sources, err := Discover([]string{dir}, "*.nmap")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.nmap")}, Names(sources))

	_, err = Discover([]string{dir}, "[")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestDiscover_Stdin(t *testing.T) {
	sources, err := Discover([]string{"-"}, "")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "stdin", sources[0].Name())
}

func TestDiscoverWithStdin(t *testing.T) {
	stdin := strings.NewReader("<nmaprun/>")
	sources, err := DiscoverWithStdin([]string{"-"}, "", stdin)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	data, err := sources[0].Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<nmaprun/>", string(data))
}

func TestFileSource_Read(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.xml")
	writeFile(t, path, "<nmaprun/>")

	data, err := FileSource{Path: path}.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<nmaprun/>", string(data))

	_, err = FileSource{Path: filepath.Join(dir, "nope.xml")}.Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSkippable(err))
	assert.Equal(t, errors.CodeFileNotFound, errors.GetCode(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Path: path}.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaderSource_Read(t *testing.T) {
	src := ReaderSource{Label: "stdin", Reader: strings.NewReader("<nmaprun/>")}
	data, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<nmaprun/>", string(data))
}
