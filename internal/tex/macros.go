package tex

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
)

// Macros collects values as \newcommand definitions:
//
//	\newcommand{\speedup}{1.42}
type Macros struct {
	File
	Precision int

	names  []string
	values map[string]any
}

func NewMacros(filename string) *Macros {
	return &Macros{
		File:      newFile(filename, DefaultFilename),
		Precision: DefaultPrecision,
		values:    make(map[string]any),
	}
}

// Macro defines \name. Defining a name twice replaces the value but keeps
// the position of the first definition.
func (m *Macros) Macro(name string, value any) error {
	if err := validMacroName(name); err != nil {
		return err
	}
	if _, err := argument(value, m.Precision); err != nil {
		return fmt.Errorf("macro %s: %w", name, err)
	}
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = value
	return nil
}

func (m *Macros) Get(name string) (any, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Names returns the macro names in definition order.
func (m *Macros) Names() []string {
	return append([]string(nil), m.names...)
}

func (m *Macros) Len() int {
	return len(m.names)
}

func (m *Macros) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	for _, name := range m.names {
		value, err := argument(m.values[name], m.Precision)
		if err != nil {
			return nil, fmt.Errorf("macro %s: %w", name, err)
		}
		fmt.Fprintf(&buf, "\\newcommand{\\%s}{%s}\n", name, value)
	}
	return buf.Bytes(), nil
}

func (m *Macros) Write() error {
	b, err := m.Bytes()
	if err != nil {
		return err
	}
	return m.write(b)
}

func (m *Macros) AfterRun() error {
	return m.Write()
}

// Read replaces the current definitions with the ones found in the file.
func (m *Macros) Read() error {
	b, err := m.read()
	if err != nil {
		return err
	}
	return m.Parse(string(b))
}

func (m *Macros) Parse(text string) error {
	m.names = nil
	m.values = make(map[string]any)
	return commands(text, `\newcommand`, func(i int) (int, error) {
		name, i, err := readMacroName(text, i)
		if err != nil {
			return i, err
		}
		value, i, err := readGroup(text, i)
		if err != nil {
			return i, fmt.Errorf("macro %s: %w", name, err)
		}
		if _, ok := m.values[name]; !ok {
			m.names = append(m.names, name)
		}
		m.values[name] = value
		return i, nil
	})
}

// readMacroName accepts both \newcommand{\name} and \newcommand\name.
func readMacroName(s string, i int) (string, int, error) {
	var raw string
	j := skipSpace(s, i)
	if j < len(s) && s[j] == '{' {
		g, next, err := readGroup(s, j)
		if err != nil {
			return "", next, err
		}
		raw, i = strings.TrimSpace(g), next
	} else {
		k := j
		if k < len(s) && s[k] == '\\' {
			k++
		}
		for k < len(s) && isLetter(s[k]) {
			k++
		}
		raw, i = s[j:k], k
	}
	name := strings.TrimPrefix(raw, `\`)
	if err := validMacroName(name); err != nil {
		return "", i, err
	}
	return name, i, nil
}

func validMacroName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty macro name", ErrInvalidName)
	}
	for i := 0; i < len(name); i++ {
		if !isLetter(name[i]) {
			return fmt.Errorf("%w: macro %q may only contain letters", ErrInvalidName, name)
		}
	}
	return nil
}

var digitNames = [...]string{"Zero", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine"}

// MacroName turns a key path such as "bench/latency_p99" into a TeX control
// word ("benchLatencyPNineNine"). Digits are spelled out, everything that is
// not an ASCII letter separates words.
func MacroName(key string) (string, error) {
	var b strings.Builder
	upper := false
	for _, r := range key {
		switch {
		case r < unicode.MaxASCII && isLetter(byte(r)):
			if upper && b.Len() > 0 {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			upper = false
		case r >= '0' && r <= '9':
			d := digitNames[r-'0']
			if b.Len() == 0 {
				d = strings.ToLower(d)
			}
			b.WriteString(d)
			upper = true
		default:
			upper = true
		}
	}
	name := b.String()
	if name == "" {
		return "", fmt.Errorf("%w: %q has no letters or digits", ErrInvalidName, key)
	}
	return name, nil
}
