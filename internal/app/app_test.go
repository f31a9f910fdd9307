package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZetoOfficial/texport/internal/experiment"
	"github.com/ZetoOfficial/texport/internal/models"
	"github.com/ZetoOfficial/texport/internal/storage"
	"github.com/ZetoOfficial/texport/internal/tex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const results = `{
	"experiment": "Fib",
	"metadata": {"n": "30"},
	"values": {
		"runtime": 1.25,
		"runs": 10,
		"latency": {"value": 4.2, "unit": "\\milli\\second"},
		"bench": {"p99": 7},
		"series": [1, 2, 3],
		"status": "50% done"
	}
}`

func writeResults(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(results), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestParseFormats(t *testing.T) {
	formats, err := ParseFormats("macros, lua,macros")
	require.NoError(t, err)
	assert.Equal(t, []string{"macros", "lua"}, formats)

	formats, err = ParseFormats("all")
	require.NoError(t, err)
	assert.Equal(t, AllFormats, formats)

	_, err = ParseFormats("html")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = ParseFormats(" , ")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRun_AllFormats(t *testing.T) {
	base := t.TempDir()
	store := storage.NewMemoryStorage()
	a := NewApp(store)

	instance, err := a.Run(context.Background(), Options{
		Input:     writeResults(t),
		Store:     true,
		BaseDir:   base,
		Precision: 2,
		Escape:    true,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^Fib-[0-9a-f]{32}$`, instance)
	dir := filepath.Join(base, instance)

	assert.Equal(t,
		"\\newcommand{\\benchPNineNine}{7}\n"+
			"\\newcommand{\\latency}{4.20}\n"+
			"\\newcommand{\\latencyUnit}{\\milli\\second}\n"+
			"\\newcommand{\\runs}{10}\n"+
			"\\newcommand{\\runtime}{1.25}\n"+
			"\\newcommand{\\series}{1,2,3}\n"+
			"\\newcommand{\\status}{50\\% done}\n",
		readFile(t, filepath.Join(dir, "macros.tex")))

	pgf := tex.NewPgfKeyDict("pgfkeys.tex", "")
	pgf.SetBaseDirectory(dir)
	require.NoError(t, pgf.Read())
	v, _ := pgf.Get("latency/unit")
	assert.Equal(t, `\milli\second`, v)
	v, _ = pgf.Get("bench/p99")
	assert.Equal(t, "7", v)

	dref := readFile(t, filepath.Join(dir, "dataref.tex"))
	assert.Contains(t, dref, "\\drefset[unit=\\milli\\second]{/versuchung/latency}{4.20}\n")
	assert.Contains(t, dref, "\\drefset{/versuchung/runs}{10}\n")

	lua := tex.NewLuaTable("data.lua")
	lua.SetBaseDirectory(dir)
	require.NoError(t, lua.Read())
	v, _ = lua.Get("bench")
	assert.Equal(t, map[string]any{"p99": int64(7)}, v)
	v, _ = lua.Get("latency")
	assert.Equal(t, map[string]any{"value": 4.2, "unit": `\milli\second`}, v)
	v, _ = lua.Get("status")
	assert.Equal(t, "50% done", v)

	stored, err := store.LoadResultSet(context.Background(), instance)
	require.NoError(t, err)
	assert.Equal(t, "Fib", stored.Experiment)
	assert.Len(t, stored.Values, 6)

	var out bytes.Buffer
	require.NoError(t, a.List(&out, base, "Fib"))
	assert.Contains(t, out.String(), "+"+instance+"\n")
	assert.Contains(t, out.String(), "|  n: 30\n")
}

func TestRun_UnescapedSpecialCharacters(t *testing.T) {
	_, err := NewApp(nil).Run(context.Background(), Options{
		Input:   writeResults(t),
		BaseDir: t.TempDir(),
		Formats: []string{FormatMacros},
	})
	assert.ErrorIs(t, err, tex.ErrUnsafeValue)
}

func TestList_Tree(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	producer, err := experiment.New("Producer").Execute(ctx, base, func(context.Context, *experiment.Experiment) error { return nil })
	require.NoError(t, err)

	consumer := experiment.New("Consumer")
	consumer.Inputs["producer"] = experiment.Previous{BaseDir: base, Instance: producer}
	instance, err := consumer.Execute(ctx, base, func(context.Context, *experiment.Experiment) error { return nil })
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewApp(nil).List(&out, base, "Consumer"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "+"+instance, lines[0])
	assert.Contains(t, lines, "|  experiment-name: Consumer")
	assert.Contains(t, lines, "|  producer: "+producer)
	assert.Contains(t, lines, "+---"+producer)
	assert.Contains(t, lines, "|     experiment-name: Producer")
	headers := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "+") {
			headers++
		}
	}
	assert.Equal(t, 2, headers)
}

func TestRun_FromStorageWithQuery(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.SaveResultSet(ctx, "Fib-a", &models.ResultSet{
		Experiment: "Fib", Version: 1, Values: []models.Value{{Key: "runtime", Value: 1.0}},
	}))
	require.NoError(t, store.SaveResultSet(ctx, "Fib-b", &models.ResultSet{
		Experiment: "Fib", Version: 1, Values: []models.Value{{Key: "runtime", Value: 3.0}},
	}))

	base := t.TempDir()
	instance, err := NewApp(store).Run(ctx, Options{
		ResultSet: "Fib-b",
		Query:     "value_stats",
		QueryKey:  "runtime",
		Formats:   []string{FormatPgfKeys},
		Title:     "Summary",
		BaseDir:   base,
	})
	require.NoError(t, err)

	pgf := tex.NewPgfKeyDict("pgfkeys.tex", "")
	pgf.SetBaseDirectory(filepath.Join(base, instance))
	require.NoError(t, pgf.Read())
	assert.Equal(t, []string{
		"query/value_stats/1/count",
		"query/value_stats/1/max",
		"query/value_stats/1/mean",
		"query/value_stats/1/min",
		"runtime",
	}, pgf.Keys())
	v, _ := pgf.Get("query/value_stats/1/mean")
	assert.Equal(t, "2", v)
	assert.NoFileExists(t, filepath.Join(base, instance, "macros.tex"))
}

func TestRun_QueryOnly(t *testing.T) {
	instance, err := NewApp(storage.NewMemoryStorage()).Run(context.Background(), Options{Query: "result_sets"})
	require.NoError(t, err)
	assert.Empty(t, instance)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewApp(nil).Run(ctx, Options{})
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = NewApp(nil).Run(ctx, Options{ResultSet: "x"})
	assert.ErrorIs(t, err, ErrNoStorage)

	_, err = NewApp(storage.NewMemoryStorage()).Run(ctx, Options{ResultSet: "missing"})
	assert.ErrorIs(t, err, storage.ErrResultSetNotFound)

	_, err = NewApp(nil).Run(ctx, Options{Input: writeResults(t), BaseDir: t.TempDir(), Store: true})
	assert.ErrorIs(t, err, ErrNoStorage)
}

func TestFillMacros_Duplicate(t *testing.T) {
	m := tex.NewMacros("")
	rs := &models.ResultSet{Values: []models.Value{
		{Key: "a_b", Value: 1},
		{Key: "a/b", Value: 2},
	}}
	err := fillMacros(m, rs, exportOptions{Precision: -1})
	assert.ErrorIs(t, err, ErrDuplicateMacro)
}

func TestQueryValues(t *testing.T) {
	values := queryValues("q", []map[string]any{
		{"name": "a", "unit": nil},
		{"name": "b"},
	})
	assert.Equal(t, []models.Value{
		{Key: "query/q/1/name", Value: "a"},
		{Key: "query/q/2/name", Value: "b"},
	}, values)
}
