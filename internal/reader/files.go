package reader

import (
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Expand resolves input paths and glob patterns (including ** for
// recursive matches) to a list of files, keeping argument order. A pattern
// matching nothing is an error; a literal path is kept as is so that
// opening it reports the real problem.
func Expand(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pattern := range patterns {
		if pattern == Stdin || !hasMeta(pattern) {
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("failed to expand pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			add(m)
		}
	}

	return out, nil
}

// Open returns a reader for path; Stdin selects stdin. The caller closes
// the result.
func Open(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == Stdin {
		return io.NopCloser(stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

func hasMeta(p string) bool {
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
