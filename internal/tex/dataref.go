package tex

import (
	"bytes"
	"fmt"
	"strings"
)

// DatarefDict is a dictionary exported for the dataref LaTeX package:
//
//	\drefset{/versuchung/runtime}{23}
//	\drefset[unit=\milli\second]{/versuchung/latency}{4.2}
//
// In the document the values are referenced with \dref{/versuchung/runtime}.
type DatarefDict struct {
	File
	dict
	Precision int

	units map[string]string
}

func NewDatarefDict(filename, root string) *DatarefDict {
	if root == "" {
		root = DefaultRoot
	}
	return &DatarefDict{
		File:      newFile(filename, DefaultFilename),
		dict:      newDict(root),
		Precision: DefaultPrecision,
		units:     make(map[string]string),
	}
}

func (d *DatarefDict) Set(key string, value any) error {
	k, err := d.set(key, value, d.Precision)
	if err != nil {
		return err
	}
	delete(d.units, k)
	return nil
}

// SetUnit stores a value together with the unit dataref typesets with it.
func (d *DatarefDict) SetUnit(key string, value any, unit string) error {
	if err := CheckValue(unit); err != nil {
		return fmt.Errorf("unit of %s: %w", key, err)
	}
	if strings.ContainsAny(unit, "[],") {
		return fmt.Errorf("%w: unit %q of %s contains brackets or commas", ErrUnsupportedValue, unit, key)
	}
	k, err := d.set(key, value, d.Precision)
	if err != nil {
		return err
	}
	if unit == "" {
		delete(d.units, k)
	} else {
		d.units[k] = unit
	}
	return nil
}

func (d *DatarefDict) Unit(key string) string {
	k, err := normalizeKey(key)
	if err != nil {
		return ""
	}
	return d.units[k]
}

func (d *DatarefDict) Delete(key string) {
	d.dict.Delete(key)
	if k, err := normalizeKey(key); err == nil {
		delete(d.units, k)
	}
}

func (d *DatarefDict) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	for _, key := range d.Keys() {
		value, err := argument(d.values[key], d.Precision)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", key, err)
		}
		if unit, ok := d.units[key]; ok {
			fmt.Fprintf(&buf, "\\drefset[unit=%s]{%s}{%s}\n", unit, d.fullKey(key), value)
			continue
		}
		fmt.Fprintf(&buf, "\\drefset{%s}{%s}\n", d.fullKey(key), value)
	}
	return buf.Bytes(), nil
}

func (d *DatarefDict) Write() error {
	b, err := d.Bytes()
	if err != nil {
		return err
	}
	return d.write(b)
}

func (d *DatarefDict) AfterRun() error {
	return d.Write()
}

func (d *DatarefDict) Read() error {
	b, err := d.read()
	if err != nil {
		return err
	}
	return d.Parse(string(b))
}

// Parse replaces the content with the values below the root found in text.
func (d *DatarefDict) Parse(text string) error {
	d.reset()
	d.units = make(map[string]string)
	return commands(text, `\drefset`, func(i int) (int, error) {
		opts, i, _ := readOptional(text, i)
		key, i, err := readGroup(text, i)
		if err != nil {
			return i, err
		}
		value, i, err := readGroup(text, i)
		if err != nil {
			return i, fmt.Errorf("key %s: %w", key, err)
		}
		rel, ok := d.relativeKey(key)
		if !ok {
			return i, nil
		}
		d.values[rel] = value
		if unit := optionValue(opts, "unit"); unit != "" {
			d.units[rel] = unit
		}
		return i, nil
	})
}

// optionValue extracts name=value from a key=value option list.
func optionValue(opts, name string) string {
	for _, opt := range strings.Split(opts, ",") {
		k, v, ok := strings.Cut(opt, "=")
		if ok && strings.TrimSpace(k) == name {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
