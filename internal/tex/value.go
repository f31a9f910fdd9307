package tex

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidName      = errors.New("invalid name")
	ErrUnbalanced       = errors.New("unbalanced braces")
	ErrUnsupportedValue = errors.New("unsupported value")
	ErrSyntax           = errors.New("syntax error")
	ErrUnsafeValue      = errors.New("unsafe value")
)

// DefaultPrecision keeps the shortest representation of floating point values.
const DefaultPrecision = -1

// FormatValue renders a scalar the way it is placed into a TeX argument.
// Strings are copied verbatim so that values may carry TeX markup.
func FormatValue(v any, precision int) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case fmt.Stringer:
		if d, ok := val.(decimal.Decimal); ok {
			return formatDecimal(d, precision), nil
		}
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return formatFloat(float64(val), precision)
	case float64:
		return formatFloat(val, precision)
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func formatFloat(f float64, precision int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return formatDecimal(decimal.NewFromFloat(f), precision), nil
}

func formatDecimal(d decimal.Decimal, precision int) string {
	if precision < 0 {
		return d.String()
	}
	return d.StringFixed(int32(precision))
}

var escapes = map[rune]string{
	'\\': `\textbackslash{}`,
	'{':  `\{`,
	'}':  `\}`,
	'$':  `\$`,
	'&':  `\&`,
	'#':  `\#`,
	'^':  `\textasciicircum{}`,
	'_':  `\_`,
	'%':  `\%`,
	'~':  `\textasciitilde{}`,
}

// Escape quotes every character TeX treats specially.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if e, ok := escapes[r]; ok {
			b.WriteString(e)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CheckBalanced reports whether s can be used as a single TeX group.
func CheckBalanced(s string) error {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unexpected } at %d in %q", ErrUnbalanced, i, s)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: %d unclosed group(s) in %q", ErrUnbalanced, depth, s)
	}
	return nil
}

// CheckValue reports whether s can be written verbatim into a TeX argument
// and read back. Besides balanced braces this rules out an unpaired trailing
// backslash, which escapes the closing brace, an unescaped % which comments it
// out, and an unescaped # which is illegal in a macro body.
func CheckValue(s string) error {
	if err := CheckBalanced(s); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i == len(s)-1 {
				return fmt.Errorf("%w: trailing backslash in %q", ErrUnsafeValue, s)
			}
			i++
		case '%', '#':
			return fmt.Errorf("%w: unescaped %c at %d in %q", ErrUnsafeValue, s[i], i, s)
		}
	}
	return nil
}

func argument(v any, precision int) (string, error) {
	s, err := FormatValue(v, precision)
	if err != nil {
		return "", err
	}
	if err := CheckValue(s); err != nil {
		return "", err
	}
	return s, nil
}

// readGroup reads a brace delimited group starting at s[i] and returns its
// content without the outer braces and the index just past the group.
func readGroup(s string, i int) (string, int, error) {
	i = skipSpace(s, i)
	if i >= len(s) || s[i] != '{' {
		return "", i, fmt.Errorf("%w: expected { at %d", ErrSyntax, i)
	}
	start := i + 1
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start:i], i + 1, nil
			}
		}
	}
	return "", i, fmt.Errorf("%w: group opened at %d is not closed", ErrSyntax, start-1)
}

// readOptional reads an optional [..] argument. ok is false if there is none.
func readOptional(s string, i int) (string, int, bool) {
	j := skipSpace(s, i)
	if j >= len(s) || s[j] != '[' {
		return "", i, false
	}
	end := strings.IndexByte(s[j:], ']')
	if end < 0 {
		return "", i, false
	}
	return s[j+1 : j+end], j + end + 1, true
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

// commands finds every occurrence of the control sequence name in s and
// hands the position just after it to fn.
func commands(s, name string, fn func(i int) (int, error)) error {
	i := 0
	for {
		idx := strings.Index(s[i:], name)
		if idx < 0 {
			return nil
		}
		pos := i + idx + len(name)
		// \drefset must not match \drefsetfoo
		if pos < len(s) && isLetter(s[pos]) {
			i = pos
			continue
		}
		if isComment(s, i+idx) {
			i = pos
			continue
		}
		next, err := fn(pos)
		if err != nil {
			return err
		}
		i = next
	}
}

func isComment(s string, pos int) bool {
	lineStart := strings.LastIndexByte(s[:pos], '\n') + 1
	for j := lineStart; j < pos; j++ {
		if s[j] == '\\' {
			j++
			continue
		}
		if s[j] == '%' {
			return true
		}
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
