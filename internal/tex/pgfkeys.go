package tex

import (
	"bytes"
	"fmt"
)

// PgfKeyDict is a dictionary exported as pgfkeys values:
//
//	\pgfkeyssetvalue{/versuchung/runtime}{23}
//
// The values are accessed in the document with \pgfkeysvalueof{/versuchung/runtime}.
type PgfKeyDict struct {
	File
	dict
	Precision int
}

func NewPgfKeyDict(filename, root string) *PgfKeyDict {
	if root == "" {
		root = DefaultRoot
	}
	return &PgfKeyDict{
		File:      newFile(filename, DefaultFilename),
		dict:      newDict(root),
		Precision: DefaultPrecision,
	}
}

func (p *PgfKeyDict) Set(key string, value any) error {
	_, err := p.set(key, value, p.Precision)
	return err
}

func (p *PgfKeyDict) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	for _, key := range p.Keys() {
		value, err := argument(p.values[key], p.Precision)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", key, err)
		}
		fmt.Fprintf(&buf, "\\pgfkeyssetvalue{%s}{%s}\n", p.fullKey(key), value)
	}
	return buf.Bytes(), nil
}

func (p *PgfKeyDict) Write() error {
	b, err := p.Bytes()
	if err != nil {
		return err
	}
	return p.write(b)
}

func (p *PgfKeyDict) AfterRun() error {
	return p.Write()
}

func (p *PgfKeyDict) Read() error {
	b, err := p.read()
	if err != nil {
		return err
	}
	return p.Parse(string(b))
}

// Parse replaces the content with the values below the root found in text.
func (p *PgfKeyDict) Parse(text string) error {
	p.reset()
	return commands(text, `\pgfkeyssetvalue`, func(i int) (int, error) {
		key, i, err := readGroup(text, i)
		if err != nil {
			return i, err
		}
		value, i, err := readGroup(text, i)
		if err != nil {
			return i, fmt.Errorf("key %s: %w", key, err)
		}
		if rel, ok := p.relativeKey(key); ok {
			p.values[rel] = value
		}
		return i, nil
	})
}
