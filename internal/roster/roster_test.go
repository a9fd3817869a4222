package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNormalizesAndDedups(t *testing.T) {
	t.Parallel()

	in := `CIK,Name
320193,Apple Inc.
0000320193,Apple duplicate
789019,Microsoft Corp
`
	companies, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, companies, 2)
	require.Equal(t, "0000320193", companies[0].CIK)
	require.Equal(t, "Apple Inc.", companies[0].Name)
	require.Equal(t, "0000789019", companies[1].CIK)
}

func TestParseColumnOrderAndCase(t *testing.T) {
	t.Parallel()

	in := "name, cik\nTesla, 1318605\n"
	companies, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, companies, 1)
	require.Equal(t, "0001318605", companies[0].CIK)
	require.Equal(t, "Tesla", companies[0].Name)
}

func TestParseSkipsUnusableRows(t *testing.T) {
	t.Parallel()

	in := `cik,name
not-a-cik,Bad Row
,Empty
320193,Apple
`
	companies, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, companies, 1)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("ticker,name\nAAPL,Apple\n"))
	require.ErrorContains(t, err, "no cik column")

	_, err = Parse(strings.NewReader("cik,name\n"))
	require.ErrorContains(t, err, "no usable cik rows")

	_, err = Parse(strings.NewReader(""))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte("cik\n320193\n"), 0o600))

	companies, err := Load(path)
	require.NoError(t, err)
	require.Len(t, companies, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestNormalizeCIK(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"320193", "0000320193", true},
		{"0000320193", "0000320193", true},
		{"CIK0000320193", "0000320193", true},
		{" 320-193 ", "0000320193", true},
		{"", "", false},
		{"abc", "", false},
		{"12345678901", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeCIK(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
