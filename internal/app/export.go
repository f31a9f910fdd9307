package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ZetoOfficial/texport/internal/models"
	"github.com/ZetoOfficial/texport/internal/tex"
	"github.com/samber/lo"
)

const (
	FormatMacros  = "macros"
	FormatPgfKeys = "pgfkeys"
	FormatDataref = "dataref"
	FormatLua     = "lua"
	FormatAll     = "all"
)

var AllFormats = []string{FormatMacros, FormatPgfKeys, FormatDataref, FormatLua}

var (
	ErrUnknownFormat  = errors.New("unknown format")
	ErrDuplicateMacro = errors.New("duplicate macro")
)

// ParseFormats expands a comma separated format list.
func ParseFormats(list string) ([]string, error) {
	var formats []string
	for _, f := range strings.Split(list, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		switch {
		case f == "":
			continue
		case f == FormatAll:
			formats = append(formats, AllFormats...)
		case lo.Contains(AllFormats, f):
			formats = append(formats, f)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
		}
	}
	formats = lo.Uniq(formats)
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: no format given", ErrUnknownFormat)
	}
	return formats, nil
}

type exportOptions struct {
	Precision   int
	Escape      bool
	PgfRoot     string
	DatarefRoot string
}

// texValue prepares a value for a TeX argument. Lists become comma
// separated so they can be used with \foreach.
func texValue(v any, opts exportOptions) (any, error) {
	if s, ok := v.(string); ok && opts.Escape {
		return tex.Escape(s), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v, nil
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		item, err := texValue(rv.Index(i).Interface(), opts)
		if err != nil {
			return nil, err
		}
		s, err := tex.FormatValue(item, opts.Precision)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return strings.Join(parts, ","), nil
}

func fillMacros(m *tex.Macros, rs *models.ResultSet, opts exportOptions) error {
	m.Precision = opts.Precision
	define := func(key, name string, value any) error {
		if _, exists := m.Get(name); exists {
			return fmt.Errorf("%w: %s from %s", ErrDuplicateMacro, name, key)
		}
		return m.Macro(name, value)
	}
	for _, v := range rs.Values {
		name, err := tex.MacroName(v.Key)
		if err != nil {
			return err
		}
		value, err := texValue(v.Value, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", v.Key, err)
		}
		if err := define(v.Key, name, value); err != nil {
			return err
		}
		if v.Unit != "" {
			if err := define(v.Key, name+"Unit", v.Unit); err != nil {
				return err
			}
		}
	}
	return nil
}

func fillPgfKeys(p *tex.PgfKeyDict, rs *models.ResultSet, opts exportOptions) error {
	p.Precision = opts.Precision
	for _, v := range rs.Values {
		value, err := texValue(v.Value, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", v.Key, err)
		}
		if err := p.Set(v.Key, value); err != nil {
			return err
		}
		if v.Unit != "" {
			if err := p.Set(v.Key+"/unit", v.Unit); err != nil {
				return err
			}
		}
	}
	return nil
}

func fillDataref(d *tex.DatarefDict, rs *models.ResultSet, opts exportOptions) error {
	d.Precision = opts.Precision
	for _, v := range rs.Values {
		value, err := texValue(v.Value, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", v.Key, err)
		}
		if err := d.SetUnit(v.Key, value, v.Unit); err != nil {
			return err
		}
	}
	return nil
}

// fillLua keeps the nesting of the keys. Values with a unit become
// {value = ..., unit = ...} tables.
func fillLua(l *tex.LuaTable, rs *models.ResultSet, opts exportOptions) error {
	l.Precision = opts.Precision
	withUnits := models.ResultSet{Values: lo.Map(rs.Values, func(v models.Value, _ int) models.Value {
		if v.Unit == "" {
			return v
		}
		return models.Value{Key: v.Key, Value: map[string]any{"value": v.Value, "unit": v.Unit}}
	})}
	for key, value := range withUnits.Tree() {
		if err := l.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
