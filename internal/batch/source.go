package batch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anstrom/scanexport/internal/errors"
)

// DefaultPattern selects the files read from a directory argument.
const DefaultPattern = "*.xml"

// Source is one input document. Read returns the whole document; failures
// should be *errors.SourceError values.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// FileSource reads a document from the file system.
type FileSource struct {
	Path string
}

// Name implements Source.
func (f FileSource) Name() string {
	return f.Path
}

// Read implements Source.
func (f FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.ErrSourceRead(f.Path, err)
	}
	return data, nil
}

// BytesSource is a document that is already in memory.
type BytesSource struct {
	Label string
	Data  []byte
}

// Name implements Source.
func (b BytesSource) Name() string {
	return b.Label
}

// Read implements Source.
func (b BytesSource) Read(context.Context) ([]byte, error) {
	return b.Data, nil
}

// ReaderSource reads a document from a stream such as stdin. It can be read
// once.
type ReaderSource struct {
	Label  string
	Reader io.Reader
}

// Name implements Source.
func (r ReaderSource) Name() string {
	return r.Label
}

// Read implements Source.
func (r ReaderSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r.Reader)
	if err != nil {
		return nil, errors.ErrSourceRead(r.Label, err)
	}
	return data, nil
}

// Discover expands command line arguments into sources, keeping argument
// order. A directory contributes its files matching pattern, a glob its
// matches, both sorted by name. "-" stands for stdin. Any other argument is
// taken as a file path even when it does not exist, so that a missing file is
// reported and skipped like any other unreadable source.
func Discover(args []string, pattern string) ([]Source, error) {
	return DiscoverWithStdin(args, pattern, os.Stdin)
}

// DiscoverWithStdin is Discover with "-" bound to stdin instead of os.Stdin.
func DiscoverWithStdin(args []string, pattern string, stdin io.Reader) ([]Source, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, errors.ErrConfigInvalid("export.pattern", pattern)
	}

	var sources []Source
	for _, arg := range args {
		switch {
		case arg == "-":
			sources = append(sources, ReaderSource{Label: "stdin", Reader: stdin})

		case isGlob(arg):
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, errors.ErrConfigInvalid("source", arg)
			}
			for _, m := range matches {
				if info, err := os.Stat(m); err == nil && info.IsDir() {
					continue
				}
				sources = append(sources, FileSource{Path: m})
			}

		default:
			info, err := os.Stat(arg)
			if err != nil || !info.IsDir() {
				sources = append(sources, FileSource{Path: arg})
				continue
			}
			found, err := discoverDir(arg, pattern)
			if err != nil {
				return nil, err
			}
			sources = append(sources, found...)
		}
	}

	return sources, nil
}

func discoverDir(dir, pattern string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.ErrSourceRead(dir, err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); ok {
			sources = append(sources, FileSource{Path: filepath.Join(dir, entry.Name())})
		}
	}
	return sources, nil
}

func isGlob(arg string) bool {
	return strings.ContainsAny(arg, "*?[")
}

// Names returns the names of sources, in order.
func Names(sources []Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}
