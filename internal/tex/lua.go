package tex

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	lua "github.com/yuin/gopher-lua"
)

// DefaultLuaFilename is used when a LuaTable is created without a filename.
const DefaultLuaFilename = "data.lua"

// LuaTable is a dictionary exported as a Lua chunk returning a table. With
// LuaTeX the data is loaded by \directlua{data = dofile("data.lua")}.
// Values may be nested maps and slices. Lua does not tell an empty array from
// an empty table, so an empty slice or map is read back as map[string]any{}.
type LuaTable struct {
	File
	Precision int

	values map[string]any
}

func NewLuaTable(filename string) *LuaTable {
	return &LuaTable{
		File:      newFile(filename, DefaultLuaFilename),
		Precision: DefaultPrecision,
		values:    make(map[string]any),
	}
}

func (t *LuaTable) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidName)
	}
	var buf bytes.Buffer
	if err := t.encode(&buf, reflect.ValueOf(value), 1); err != nil {
		return fmt.Errorf("key %s: %w", key, err)
	}
	t.values[key] = value
	return nil
}

func (t *LuaTable) Get(key string) (any, bool) {
	v, ok := t.values[key]
	return v, ok
}

func (t *LuaTable) Delete(key string) {
	delete(t.values, key)
}

func (t *LuaTable) Keys() []string {
	keys := lo.Keys(t.values)
	sort.Strings(keys)
	return keys
}

func (t *LuaTable) Len() int {
	return len(t.values)
}

func (t *LuaTable) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("return ")
	if err := t.encode(&buf, reflect.ValueOf(t.values), 1); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (t *LuaTable) Write() error {
	b, err := t.Bytes()
	if err != nil {
		return err
	}
	return t.write(b)
}

func (t *LuaTable) AfterRun() error {
	return t.Write()
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func (t *LuaTable) encode(buf *bytes.Buffer, v reflect.Value, depth int) error {
	if !v.IsValid() {
		buf.WriteString("nil")
		return nil
	}
	if v.Type() == decimalType {
		buf.WriteString(formatDecimal(v.Interface().(decimal.Decimal), t.Precision))
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		return t.encode(buf, v.Elem(), depth)
	case reflect.String:
		buf.WriteString(luaQuote(v.String()))
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			buf.WriteString("(0/0)")
		case math.IsInf(f, 1):
			buf.WriteString("(1/0)")
		case math.IsInf(f, -1):
			buf.WriteString("(-1/0)")
		default:
			buf.WriteString(formatDecimal(decimal.NewFromFloat(f), t.Precision))
		}
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i := 0; i < v.Len(); i++ {
			indent(buf, depth)
			if err := t.encode(buf, v.Index(i), depth+1); err != nil {
				return err
			}
			buf.WriteString(",\n")
		}
		indent(buf, depth-1)
		buf.WriteByte('}')
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key type %s", ErrUnsupportedValue, v.Type().Key())
		}
		if v.Len() == 0 {
			buf.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		buf.WriteString("{\n")
		for _, k := range keys {
			indent(buf, depth)
			buf.WriteString(luaKey(k))
			buf.WriteString(" = ")
			if err := t.encode(buf, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())), depth+1); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			buf.WriteString(",\n")
		}
		indent(buf, depth-1)
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedValue, v.Type())
	}
	return nil
}

func indent(buf *bytes.Buffer, depth int) {
	buf.WriteString(strings.Repeat("  ", depth))
}

var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "if": true,
	"in": true, "local": true, "nil": true, "not": true, "or": true,
	"repeat": true, "return": true, "then": true, "true": true, "until": true,
	"while": true, "goto": true,
}

func luaKey(k string) string {
	if isIdentifier(k) && !luaKeywords[k] {
		return k
	}
	return "[" + luaQuote(k) + "]"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isLetter(c) || c == '_' || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

// luaQuote quotes s as a Lua 5.1 string literal. Bytes outside printable
// ASCII other than UTF-8 sequences are written as decimal escapes.
func luaQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03d`, c)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Read evaluates the chunk in a state without any libraries and replaces
// the content with the returned table.
func (t *LuaTable) Read() error {
	b, err := t.read()
	if err != nil {
		return err
	}
	return t.Parse(string(b))
}

func (t *LuaTable) Parse(chunk string) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	fn, err := L.LoadString(chunk)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return fmt.Errorf("evaluate %s: %w", t.Filename(), err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return fmt.Errorf("%w: chunk returned %s instead of a table", ErrSyntax, ret.Type())
	}
	values := make(map[string]any)
	var convErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("%w: top level key %s is not a string", ErrSyntax, k.String())
			return
		}
		values[string(key)] = fromLua(v)
	})
	if convErr != nil {
		return convErr
	}
	t.values = values
	return nil
}

func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case *lua.LTable:
		if n := val.MaxN(); n > 0 && n == countEntries(val) {
			list := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				list = append(list, fromLua(val.RawGetInt(i)))
			}
			return list
		}
		m := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			m[k.String()] = fromLua(v)
		})
		return m
	}
	return nil
}

func countEntries(t *lua.LTable) int {
	n := 0
	t.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}
