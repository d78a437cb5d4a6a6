package sqlfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstStatement(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "single", in: "SELECT 1;", want: "SELECT 1"},
		{name: "line comment", in: "-- header\nSELECT * FROM users -- trailing\n;", want: "SELECT * FROM users"},
		{name: "block comment", in: "/* multi\nline */ SELECT 2; SELECT 3;", want: "SELECT 2"},
		{name: "leading empty parts", in: " ; ;\n SELECT 4", want: "SELECT 4"},
		{name: "bom", in: "\ufeffSELECT 5;", want: "SELECT 5"},
		{name: "only comments", in: "-- nothing here\n/* still nothing */", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FirstStatement([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFirstStatementLimits(t *testing.T) {
	_, err := FirstStatement(bytes.Repeat([]byte("a"), MaxSize+1))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = FirstStatement([]byte{0xff, 0xfe, 'S'})
	require.ErrorIs(t, err, ErrNotUTF8)

	_, err = Read(strings.NewReader(strings.Repeat("x", MaxSize+10)))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("SELECT 1;"), 0o644))
	}
	write("b.sql")
	write("a.PGSQL")
	write("notes.txt")
	write("nested/c.sql")

	flat, err := Collect(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PGSQL"), filepath.Join(dir, "b.sql")}, flat)

	deep, err := Collect(dir, true)
	require.NoError(t, err)
	assert.Len(t, deep, 3)
	assert.Contains(t, deep, filepath.Join(dir, "nested", "c.sql"))

	single, err := Collect(filepath.Join(dir, "b.sql"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.sql")}, single)

	none, err := Collect(filepath.Join(dir, "notes.txt"), false)
	require.NoError(t, err)
	assert.Empty(t, none)

	stmt, err := ReadFile(filepath.Join(dir, "b.sql"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", stmt)
}
