package tex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// DefaultRoot is the key prefix used by PgfKeyDict and DatarefDict.
const DefaultRoot = "/versuchung"

// dict is the key/value storage shared by the key based formats.
type dict struct {
	root   string
	values map[string]any
}

func newDict(root string) dict {
	return dict{root: normalizeRoot(root), values: make(map[string]any)}
}

func normalizeRoot(root string) string {
	root = strings.TrimRight(strings.TrimSpace(root), "/")
	if root != "" && !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	return root
}

func normalizeKey(key string) (string, error) {
	k := strings.Trim(strings.TrimSpace(key), "/")
	if k == "" {
		return "", fmt.Errorf("%w: empty key %q", ErrInvalidName, key)
	}
	if strings.ContainsAny(k, "{}\\%\n") {
		return "", fmt.Errorf("%w: key %q contains TeX special characters", ErrInvalidName, key)
	}
	return k, nil
}

func (d *dict) Root() string {
	return d.root
}

func (d *dict) set(key string, value any, precision int) (string, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := argument(value, precision); err != nil {
		return "", fmt.Errorf("key %s: %w", k, err)
	}
	d.values[k] = value
	return k, nil
}

func (d *dict) Get(key string) (any, bool) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, false
	}
	v, ok := d.values[k]
	return v, ok
}

func (d *dict) Delete(key string) {
	if k, err := normalizeKey(key); err == nil {
		delete(d.values, k)
	}
}

// Keys returns the keys in the order they are written.
func (d *dict) Keys() []string {
	keys := lo.Keys(d.values)
	sort.Strings(keys)
	return keys
}

func (d *dict) Len() int {
	return len(d.values)
}

func (d *dict) fullKey(key string) string {
	return d.root + "/" + key
}

// relativeKey strips the root from a key read from a file. Keys outside the
// root are reported as not ok.
func (d *dict) relativeKey(full string) (string, bool) {
	full = strings.TrimSpace(full)
	rel, ok := strings.CutPrefix(full, d.root+"/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

func (d *dict) reset() {
	d.values = make(map[string]any)
}
