package vocabulary_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

func TestParseNormalizesSkills(t *testing.T) {
	v, err := vocabulary.Parse([]byte("skills:\n  - Python\n  - ' SQL '\n  - python\n  - ''\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"python", "sql"}, v.Skills)
	require.Nil(t, v.States)
}

func TestParseStates(t *testing.T) {
	v, err := vocabulary.Parse([]byte("skills: [excel]\nstates:\n  act: Canberra Region\n  ' ': x\n"))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ACT": "Canberra Region"}, v.States)
}

func TestParseEmpty(t *testing.T) {
	_, err := vocabulary.Parse([]byte("skills: []\n"))
	require.ErrorIs(t, err, vocabulary.ErrEmpty)

	_, err = vocabulary.Parse([]byte("skills: [\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := vocabulary.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.ErrorIs(t, err, vocabulary.ErrEmpty)

	_, err = vocabulary.Load("")
	require.ErrorIs(t, err, vocabulary.ErrEmpty)
}

func TestLoaderPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yml")
	require.NoError(t, os.WriteFile(path, []byte("skills: [python]\n"), 0o600))

	l := vocabulary.NewLoader(path)
	v, err := l.Current()
	require.NoError(t, err)
	require.Equal(t, []string{"python"}, v.Skills)

	require.NoError(t, os.WriteFile(path, []byte("skills: [python, sql, excel]\n"), 0o600))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	v, err = l.Current()
	require.NoError(t, err)
	require.Equal(t, []string{"python", "sql", "excel"}, v.Skills)

	require.NoError(t, os.Remove(path))
	_, err = l.Current()
	require.ErrorIs(t, err, vocabulary.ErrEmpty)
}
