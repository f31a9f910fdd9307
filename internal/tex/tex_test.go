package tex

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		precision int
		want      string
	}{
		{"string verbatim", `\SI{3}{\ms}`, -1, `\SI{3}{\ms}`},
		{"nil", nil, -1, ""},
		{"bool", true, -1, "true"},
		{"int", 42, -1, "42"},
		{"negative int64", int64(-7), 2, "-7"},
		{"uint", uint16(9), -1, "9"},
		{"float shortest", 1.5, -1, "1.5"},
		{"float fixed", 1.5, 3, "1.500"},
		{"float rounded", 2.345678, 2, "2.35"},
		{"decimal", decimal.RequireFromString("10.25"), 1, "10.3"},
		{"decimal shortest", decimal.RequireFromString("10.250"), -1, "10.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatValue(tt.value, tt.precision)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValue_Unsupported(t *testing.T) {
	_, err := FormatValue(map[string]any{"a": 1}, -1)
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = FormatValue(math.NaN(), -1)
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = FormatValue(math.Inf(1), 2)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `50\% of \$x\_1 \& y`, Escape(`50% of $x_1 & y`))
	assert.Equal(t, `\textbackslash{}\{\}`, Escape(`\{}`))
	assert.Equal(t, `a\textasciitilde{}b\textasciicircum{}c\#`, Escape(`a~b^c#`))
	assert.NoError(t, CheckBalanced(Escape(`}{ unbalanced {`)))
}

func TestCheckBalanced(t *testing.T) {
	assert.NoError(t, CheckBalanced(`\textbf{a{b}c}`))
	assert.NoError(t, CheckBalanced(`escaped \{ brace`))
	assert.ErrorIs(t, CheckBalanced(`a}`), ErrUnbalanced)
	assert.ErrorIs(t, CheckBalanced(`{a`), ErrUnbalanced)
}

func TestCheckValue(t *testing.T) {
	for _, s := range []string{``, `50\% done`, `C:\\`, `a\#b`, `\textbf{x}`, Escape(`50% #1 C:\`)} {
		assert.NoError(t, CheckValue(s), s)
	}
	for _, s := range []string{`C:\`, `50%`, `#1`, `a\\#`} {
		assert.ErrorIs(t, CheckValue(s), ErrUnsafeValue, s)
	}
	assert.ErrorIs(t, CheckValue(`{a`), ErrUnbalanced)
}

func TestUnsafeValuesRejected(t *testing.T) {
	m := NewMacros("")
	p := NewPgfKeyDict("", "")
	d := NewDatarefDict("", "")
	for _, v := range []string{`C:\`, `50%`, `#1`} {
		assert.ErrorIs(t, m.Macro("v", v), ErrUnsafeValue, v)
		assert.ErrorIs(t, p.Set("v", v), ErrUnsafeValue, v)
		assert.ErrorIs(t, d.Set("v", v), ErrUnsafeValue, v)
		assert.ErrorIs(t, d.SetUnit("v", 1, v), ErrUnsafeValue, v)
	}
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 0, d.Len())
}

func TestEscapedValuesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	values := map[string]string{
		"percent":   `50\% done`,
		"path":      `C:\\`,
		"hash":      `a\#b`,
		"backslash": Escape(`C:\`),
	}

	m := NewMacros("m.tex")
	p := NewPgfKeyDict("p.tex", "")
	d := NewDatarefDict("d.tex", "")
	for _, f := range []interface{ SetBaseDirectory(string) }{m, p, d} {
		f.SetBaseDirectory(dir)
	}
	for k, v := range values {
		require.NoError(t, m.Macro(k, v))
		require.NoError(t, p.Set(k, v))
		require.NoError(t, d.Set(k, v))
	}
	require.NoError(t, m.Write())
	require.NoError(t, p.Write())
	require.NoError(t, d.Write())

	mb := NewMacros("m.tex")
	pb := NewPgfKeyDict("p.tex", "")
	db := NewDatarefDict("d.tex", "")
	for _, f := range []interface{ SetBaseDirectory(string) }{mb, pb, db} {
		f.SetBaseDirectory(dir)
	}
	require.NoError(t, mb.Read())
	require.NoError(t, pb.Read())
	require.NoError(t, db.Read())
	for k, want := range values {
		v, ok := mb.Get(k)
		require.True(t, ok, k)
		assert.Equal(t, want, v, k)
		v, ok = pb.Get(k)
		require.True(t, ok, k)
		assert.Equal(t, want, v, k)
		v, ok = db.Get(k)
		require.True(t, ok, k)
		assert.Equal(t, want, v, k)
	}
	assert.Equal(t, 4, mb.Len())
}

func TestMacros_WriteRead(t *testing.T) {
	dir := t.TempDir()
	m := NewMacros("")
	m.SetBaseDirectory(dir)
	m.Precision = 2

	require.NoError(t, m.Macro("speedup", 1.4242))
	require.NoError(t, m.Macro("runs", 10))
	require.NoError(t, m.Macro("tool", `\textsc{versuchung}`))
	require.NoError(t, m.Macro("speedup", 2.0))

	b, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t,
		"\\newcommand{\\speedup}{2.00}\n"+
			"\\newcommand{\\runs}{10}\n"+
			"\\newcommand{\\tool}{\\textsc{versuchung}}\n",
		string(b))

	require.NoError(t, m.Write())
	assert.Equal(t, filepath.Join(dir, "data.tex"), m.Path())

	back := NewMacros("data.tex")
	back.SetBaseDirectory(dir)
	require.NoError(t, back.Read())
	assert.Equal(t, []string{"speedup", "runs", "tool"}, back.Names())
	v, ok := back.Get("tool")
	require.True(t, ok)
	assert.Equal(t, `\textsc{versuchung}`, v)
}

func TestMacros_InvalidInput(t *testing.T) {
	m := NewMacros("")
	assert.ErrorIs(t, m.Macro("bad_name", 1), ErrInvalidName)
	assert.ErrorIs(t, m.Macro("x1", 1), ErrInvalidName)
	assert.ErrorIs(t, m.Macro("", 1), ErrInvalidName)
	assert.ErrorIs(t, m.Macro("ok", "{"), ErrUnbalanced)
	assert.ErrorIs(t, m.Macro("ok", []int{1}), ErrUnsupportedValue)
	assert.Equal(t, 0, m.Len())
}

func TestMacros_ParseVariants(t *testing.T) {
	m := NewMacros("")
	err := m.Parse(`% \newcommand{\ignored}{1}
\newcommand\short{a}
\renewcommand{\other}{x}
\newcommand{ \spaced }  {b {nested}}
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"short", "spaced"}, m.Names())
	v, _ := m.Get("spaced")
	assert.Equal(t, "b {nested}", v)

	assert.ErrorIs(t, m.Parse(`\newcommand{\open}{never closed`), ErrSyntax)
}

func TestMacroName(t *testing.T) {
	tests := map[string]string{
		"speedup":           "speedup",
		"bench/latency_p99": "benchLatencyPNineNine",
		"2cores":            "twoCores",
		"a-b c":             "aBC",
	}
	for in, want := range tests {
		got, err := MacroName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := MacroName("_/-")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestPgfKeyDict_WriteRead(t *testing.T) {
	dir := t.TempDir()
	p := NewPgfKeyDict("keys.tex", "")
	p.SetBaseDirectory(dir)

	require.NoError(t, p.Set("runtime", 23))
	require.NoError(t, p.Set("/bench/mean/", 1.25))
	require.NoError(t, p.Set("name", "fib"))
	assert.Equal(t, []string{"bench/mean", "name", "runtime"}, p.Keys())

	b, err := p.Bytes()
	require.NoError(t, err)
	assert.Equal(t,
		"\\pgfkeyssetvalue{/versuchung/bench/mean}{1.25}\n"+
			"\\pgfkeyssetvalue{/versuchung/name}{fib}\n"+
			"\\pgfkeyssetvalue{/versuchung/runtime}{23}\n",
		string(b))
	require.NoError(t, p.Write())

	back := NewPgfKeyDict("keys.tex", "/versuchung")
	back.SetBaseDirectory(dir)
	require.NoError(t, back.Read())
	assert.Equal(t, 3, back.Len())
	v, ok := back.Get("bench/mean")
	require.True(t, ok)
	assert.Equal(t, "1.25", v)

	p.Delete("name")
	_, ok = p.Get("name")
	assert.False(t, ok)
}

func TestPgfKeyDict_ParseIgnoresOtherRoots(t *testing.T) {
	p := NewPgfKeyDict("", "/mine")
	require.NoError(t, p.Parse(`\pgfkeyssetvalue{/other/a}{1}
\pgfkeyssetvalue{/mine/b}{2}
\pgfkeyssetvalue{/mine}{3}`))
	assert.Equal(t, []string{"b"}, p.Keys())
}

func TestPgfKeyDict_InvalidKeys(t *testing.T) {
	p := NewPgfKeyDict("", "")
	assert.ErrorIs(t, p.Set("", 1), ErrInvalidName)
	assert.ErrorIs(t, p.Set("///", 1), ErrInvalidName)
	assert.ErrorIs(t, p.Set("a{b", 1), ErrInvalidName)
	assert.ErrorIs(t, p.Set("a", "}"), ErrUnbalanced)
}

func TestPgfKeyDict_EmptyRoot(t *testing.T) {
	p := NewPgfKeyDict("", "/")
	assert.Equal(t, "", p.Root())
	require.NoError(t, p.Set("a", 1))
	b, err := p.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "\\pgfkeyssetvalue{/a}{1}\n", string(b))
}

func TestDatarefDict_WriteRead(t *testing.T) {
	dir := t.TempDir()
	d := NewDatarefDict("dref.tex", "/results")
	d.SetBaseDirectory(dir)
	d.Precision = 1

	require.NoError(t, d.Set("count", 3))
	require.NoError(t, d.SetUnit("latency", 4.25, `\milli\second`))

	b, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t,
		"\\drefset{/results/count}{3}\n"+
			"\\drefset[unit=\\milli\\second]{/results/latency}{4.3}\n",
		string(b))
	require.NoError(t, d.Write())

	back := NewDatarefDict("dref.tex", "/results")
	back.SetBaseDirectory(dir)
	require.NoError(t, back.Read())
	assert.Equal(t, []string{"count", "latency"}, back.Keys())
	assert.Equal(t, `\milli\second`, back.Unit("latency"))
	assert.Equal(t, "", back.Unit("count"))

	require.NoError(t, d.Set("latency", 5))
	assert.Equal(t, "", d.Unit("latency"))

	d.Delete("count")
	assert.Equal(t, 1, d.Len())
}

func TestDatarefDict_InvalidUnit(t *testing.T) {
	d := NewDatarefDict("", "")
	assert.ErrorIs(t, d.SetUnit("a", 1, "m,s"), ErrUnsupportedValue)
	assert.ErrorIs(t, d.SetUnit("a", 1, "{m"), ErrUnbalanced)
	assert.Equal(t, 0, d.Len())
}

func TestLuaTable_WriteRead(t *testing.T) {
	dir := t.TempDir()
	l := NewLuaTable("")
	l.SetBaseDirectory(dir)

	require.NoError(t, l.Set("runs", 10))
	require.NoError(t, l.Set("mean", 1.5))
	require.NoError(t, l.Set("name", "say \"hi\"\n"))
	require.NoError(t, l.Set("ok", true))
	require.NoError(t, l.Set("end", "keyword"))
	require.NoError(t, l.Set("series", []float64{1, 2.5}))
	require.NoError(t, l.Set("nested", map[string]any{"a b": 1, "c": []string{"x"}}))

	b, err := l.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(b), `["end"] = "keyword",`)
	assert.Contains(t, string(b), `name = "say \"hi\"\n",`)
	assert.Contains(t, string(b), `["a b"] = 1,`)
	require.NoError(t, l.Write())
	assert.Equal(t, filepath.Join(dir, "data.lua"), l.Path())

	back := NewLuaTable("data.lua")
	back.SetBaseDirectory(dir)
	require.NoError(t, back.Read())
	assert.Equal(t, l.Keys(), back.Keys())

	v, _ := back.Get("runs")
	assert.Equal(t, int64(10), v)
	v, _ = back.Get("mean")
	assert.Equal(t, 1.5, v)
	v, _ = back.Get("name")
	assert.Equal(t, "say \"hi\"\n", v)
	v, _ = back.Get("ok")
	assert.Equal(t, true, v)
	v, _ = back.Get("series")
	assert.Equal(t, []any{int64(1), 2.5}, v)
	v, _ = back.Get("nested")
	assert.Equal(t, map[string]any{"a b": int64(1), "c": []any{"x"}}, v)
}

func TestLuaTable_EmptyContainers(t *testing.T) {
	l := NewLuaTable("")
	require.NoError(t, l.Set("none", []int{}))
	require.NoError(t, l.Set("nothing", map[string]int{}))
	b, err := l.Bytes()
	require.NoError(t, err)

	back := NewLuaTable("")
	require.NoError(t, back.Parse(string(b)))
	v, _ := back.Get("none")
	assert.Equal(t, map[string]any{}, v)
	v, _ = back.Get("nothing")
	assert.Equal(t, map[string]any{}, v)
}

func TestLuaTable_Unsupported(t *testing.T) {
	l := NewLuaTable("")
	assert.ErrorIs(t, l.Set("m", map[int]int{1: 1}), ErrUnsupportedValue)
	assert.ErrorIs(t, l.Set("s", struct{}{}), ErrUnsupportedValue)
	assert.ErrorIs(t, l.Set("", 1), ErrInvalidName)
}

func TestLuaTable_ParseErrors(t *testing.T) {
	l := NewLuaTable("")
	assert.ErrorIs(t, l.Parse("return {"), ErrSyntax)
	assert.ErrorIs(t, l.Parse("return 1"), ErrSyntax)
	assert.ErrorIs(t, l.Parse("return {1, 2}"), ErrSyntax)
	assert.Error(t, l.Parse(`return { x = print("no libs") }`))
}

func TestFile_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	m := NewMacros("sub/out.tex")
	m.SetBaseDirectory(dir)
	require.NoError(t, m.BeforeRun())
	require.NoError(t, m.Macro("a", 1))
	require.NoError(t, m.AfterRun())
	require.NoError(t, m.ReadOnly())
	assert.True(t, m.Exists())

	info, err := os.Stat(m.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode().Perm())
}
