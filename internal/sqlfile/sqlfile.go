package sqlfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxSize is the largest SQL file accepted, in bytes.
const MaxSize = 1_000_000

var (
	// ErrTooLarge is returned for inputs above MaxSize.
	ErrTooLarge = errors.New("sqlfile: file too large")
	// ErrNotUTF8 is returned when the input is not valid UTF-8.
	ErrNotUTF8 = errors.New("sqlfile: input is not valid utf-8")

	commentRe = regexp.MustCompile(`(?ms)--.*?$|/\*.*?\*/`)
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	sqlExts   = map[string]struct{}{".sql": {}, ".psql": {}, ".pgsql": {}}
)

// FirstStatement strips comments and returns the first non-empty
// semicolon-separated statement of data. It returns "" when there is none.
func FirstStatement(data []byte) (string, error) {
	if len(data) > MaxSize {
		return "", fmt.Errorf("%w (> %d bytes)", ErrTooLarge, MaxSize)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}
	text := strings.TrimSpace(commentRe.ReplaceAllString(string(data), " "))
	for _, part := range strings.Split(text, ";") {
		if part = strings.TrimSpace(part); part != "" {
			return part, nil
		}
	}
	return "", nil
}

// Read loads the first statement from r.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("sqlfile: read: %w", err)
	}
	return FirstStatement(data)
}

// ReadFile loads the first statement from the file at path.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sqlfile: open: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Collect returns the SQL files under path in sorted order. A file path is
// returned as-is when it has a SQL extension.
func Collect(path string, recursive bool) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("sqlfile: stat: %w", err)
	}
	if !info.IsDir() {
		if isSQL(path) {
			return []string{path}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isSQL(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlfile: walk: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func isSQL(p string) bool {
	_, ok := sqlExts[strings.ToLower(filepath.Ext(p))]
	return ok
}
