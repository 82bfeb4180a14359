package tickers

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	s, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	_, ok := s.Resolve("IE00BK5BQT80")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "ISIN,NAME,TICKER\n"+
		"IE00BK5BQT80,VANGUARD FTSE ALL-WORLD,VWCE.DE\n"+
		"US0378331005,APPLE INC,\n"+
		"DE0007164600,SAP SE\n")
	s, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	ticker, ok := s.Resolve("IE00BK5BQT80")
	assert.True(t, ok)
	assert.Equal(t, "VWCE.DE", ticker)

	_, ok = s.Resolve("US0378331005")
	assert.False(t, ok, "empty ticker is absent")
	_, ok = s.Resolve("DE0007164600")
	assert.False(t, ok, "missing ticker field is absent")

	unmapped := s.Unmapped()
	require.Len(t, unmapped, 2)
	assert.Equal(t, "DE0007164600", unmapped[0].ISIN)
}

func TestLoad_ByteOrderMark(t *testing.T) {
	path := writeFile(t, "\ufeffISIN,NAME,TICKER\nIE00BK5BQT80,VANGUARD FTSE ALL-WORLD,VWCE.DE\n")
	s, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	ticker, ok := s.Resolve("IE00BK5BQT80")
	assert.True(t, ok)
	assert.Equal(t, "VWCE.DE", ticker)
}

func TestLoad_Corrupt(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		wantLine int
	}{
		{name: "no isin column", content: "CODE,NAME\nX,Y\n", wantLine: 1},
		{name: "empty isin", content: "ISIN,NAME,TICKER\nIE00BK5BQT80,A,B\n,C,D\n", wantLine: 3},
		{name: "bad quote", content: "ISIN,NAME,TICKER\nIE00BK5BQT80,\"A,B\n", wantLine: 2},
		{name: "duplicate", content: "ISIN,NAME,TICKER\nIE00BK5BQT80,A,B\nIE00BK5BQT80,A,C\n", wantLine: 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, tc.content)
			_, err := Load(path, zerolog.Nop())
			var corrupt *MappingFileCorruptError
			require.True(t, errors.As(err, &corrupt), "got %v", err)
			assert.Equal(t, path, corrupt.File)
			assert.Equal(t, tc.wantLine, corrupt.Line)
		})
	}
}

func TestReconcile_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	var logs bytes.Buffer
	s, err := Load(path, zerolog.New(&logs))
	require.NoError(t, err)

	added, err := s.Reconcile([]Security{
		{ISIN: "US0378331005", Name: "APPLE INC"},
		{ISIN: "IE00BK5BQT80", Name: "VANGUARD FTSE ALL-WORLD"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"US0378331005", "IE00BK5BQT80"}, added)
	assert.Equal(t, 2, strings.Count(logs.String(), `"level":"warn"`))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ISIN,NAME,TICKER\n"+
		"IE00BK5BQT80,VANGUARD FTSE ALL-WORLD,\n"+
		"US0378331005,APPLE INC,\n", string(data))
}

func TestReconcile_EmptyPortfolioCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	s, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.Reconcile(nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ISIN,NAME,TICKER\n", string(data))
}

func TestReconcile_Idempotent(t *testing.T) {
	path := writeFile(t, "ISIN,NAME,TICKER\nIE00BK5BQT80,,VWCE.DE\nZZ0000000000,GONE,GONE.X\n")
	securities := []Security{
		{ISIN: "IE00BK5BQT80", Name: "VANGUARD FTSE ALL-WORLD"},
		{ISIN: "US0378331005", Name: "APPLE INC"},
	}

	s, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	added, err := s.Reconcile(securities)
	require.NoError(t, err)
	assert.Equal(t, []string{"US0378331005"}, added)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// The ticker is kept, the empty name filled, the unrelated entry kept.
	assert.Equal(t, "ISIN,NAME,TICKER\n"+
		"IE00BK5BQT80,VANGUARD FTSE ALL-WORLD,VWCE.DE\n"+
		"US0378331005,APPLE INC,\n"+
		"ZZ0000000000,GONE,GONE.X\n", string(first))

	var logs bytes.Buffer
	s, err = Load(path, zerolog.New(&logs).Level(zerolog.WarnLevel))
	require.NoError(t, err)
	added, err = s.Reconcile(securities)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Empty(t, logs.String())

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestReconcile_KeepsNames(t *testing.T) {
	path := writeFile(t, "ISIN,NAME,TICKER\nIE00BK5BQT80,My World ETF,VWCE.DE\n")
	s, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.Reconcile([]Security{{ISIN: "IE00BK5BQT80", Name: "VANGUARD FTSE ALL-WORLD"}})
	require.NoError(t, err)
	assert.Equal(t, "My World ETF", s.Entries()[0].Name)
}

func TestSet(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), DefaultFile), zerolog.Nop())
	_, err := s.Reconcile([]Security{{ISIN: "US0378331005", Name: "APPLE INC"}})
	require.NoError(t, err)

	assert.True(t, s.Set("US0378331005", "AAPL"))
	assert.False(t, s.Set("US0378331005", "APC.F"), "existing ticker is never replaced")
	ticker, ok := s.Resolve("US0378331005")
	assert.True(t, ok)
	assert.Equal(t, "AAPL", ticker)

	require.NoError(t, s.Save())
	loaded, err := Load(s.Path(), zerolog.Nop())
	require.NoError(t, err)
	ticker, _ = loaded.Resolve("US0378331005")
	assert.Equal(t, "AAPL", ticker)
}
