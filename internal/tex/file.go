package tex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DefaultFilename is used when a format is created without a filename.
const DefaultFilename = "data.tex"

// File is a file relative to a base directory. It is the common part of all
// export formats and can serve as an experiment input and output.
type File struct {
	filename string
	baseDir  string
}

func newFile(filename, dflt string) File {
	if filename == "" {
		filename = dflt
	}
	return File{filename: filename}
}

func (f *File) Filename() string {
	return f.filename
}

func (f *File) Path() string {
	if filepath.IsAbs(f.filename) {
		return f.filename
	}
	return filepath.Join(f.baseDir, f.filename)
}

func (f *File) SetBaseDirectory(dir string) {
	f.baseDir = dir
}

func (f *File) Exists() bool {
	_, err := os.Stat(f.Path())
	return err == nil
}

// Metadata is the value recorded for the file when used as an input. It is
// the file name only so that the instance name does not depend on where the
// file was placed.
func (f *File) Metadata() string {
	return f.filename
}

// BeforeRun makes sure the directory for the file exists.
func (f *File) BeforeRun() error {
	dir := filepath.Dir(f.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func (f *File) read() ([]byte, error) {
	b, err := os.ReadFile(f.Path())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path(), err)
	}
	return b, nil
}

func (f *File) write(content []byte) error {
	path := f.Path()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		logrus.WithFields(logrus.Fields{
			"path":  path,
			"error": err,
		}).Error("write export file")
		return fmt.Errorf("write %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"path":  path,
		"bytes": len(content),
	}).Debug("export file written")
	return nil
}

// ReadOnly drops all write and execute permissions from the file.
func (f *File) ReadOnly() error {
	path := f.Path()
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	mode := info.Mode().Perm() & 0o444
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
