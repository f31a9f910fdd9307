package experiment

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
)

const (
	MetadataFile = "metadata"

	KeyDate    = "date"
	KeyName    = "experiment-name"
	KeyVersion = "experiment-version"
	KeyRunID   = "run-id"
)

// ResultSet is a previous run found in a base directory.
type ResultSet struct {
	Name     string
	Dir      string
	Metadata map[string]string
}

func writeMetadata(dir string, metadata map[string]string) error {
	b, err := sonic.ConfigStd.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	path := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func ReadMetadata(dir string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var metadata map[string]string
	if err := sonic.ConfigStd.Unmarshal(b, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", dir, err)
	}
	return metadata, nil
}

// List returns the result sets of the experiment title stored in baseDir,
// sorted by name. Directories without metadata are skipped.
func List(baseDir, title string) ([]ResultSet, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", baseDir, err)
	}
	var sets []ResultSet
	for _, entry := range entries {
		hash, ok := strings.CutPrefix(entry.Name(), title+"-")
		if !entry.IsDir() || !ok || !isInstanceHash(hash) {
			continue
		}
		dir := filepath.Join(baseDir, entry.Name())
		metadata, err := ReadMetadata(dir)
		if err != nil {
			continue
		}
		sets = append(sets, ResultSet{Name: entry.Name(), Dir: dir, Metadata: metadata})
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })
	return sets, nil
}

func isInstanceHash(s string) bool {
	if len(s) != 32 || strings.ToLower(s) != s {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Children returns the result sets in baseDir that are named by a metadata
// value of set. Previous inputs are recorded this way.
func Children(baseDir string, set ResultSet) []ResultSet {
	names := lo.Uniq(lo.Values(set.Metadata))
	sort.Strings(names)
	var children []ResultSet
	for _, name := range names {
		if name == "" || name == set.Name || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
			continue
		}
		dir := filepath.Join(baseDir, name)
		metadata, err := ReadMetadata(dir)
		if err != nil {
			continue
		}
		children = append(children, ResultSet{Name: name, Dir: dir, Metadata: metadata})
	}
	return children
}

// Previous refers to the result set of an earlier run and can be used as
// an input of another experiment.
type Previous struct {
	BaseDir  string
	Instance string
}

func (p Previous) Metadata() string { return p.Instance }

func (p Previous) Dir() string {
	return filepath.Join(p.BaseDir, p.Instance)
}

// Open checks that the result set exists and returns its metadata.
func (p Previous) Open() (map[string]string, error) {
	if p.Instance == "" {
		return nil, fmt.Errorf("%w: no instance given", ErrNotFound)
	}
	return ReadMetadata(p.Dir())
}

// Input places an input file of the previous result set in its directory.
func (p Previous) Input(f interface{ SetBaseDirectory(string) }) {
	f.SetBaseDirectory(p.Dir())
}
