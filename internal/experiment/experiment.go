package experiment

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoTitle  = errors.New("experiment has no title")
	ErrNotFound = errors.New("result set not found")
)

// Input is a parameter whose value goes into the metadata and therefore
// into the name of the result set.
type Input interface {
	Metadata() string
}

// Output is a parameter placed in the output directory of a run.
type Output interface {
	SetBaseDirectory(dir string)
	BeforeRun() error
	AfterRun() error
}

type readOnly interface {
	ReadOnly() error
}

// Value is a plain string input.
type Value string

func (v Value) Metadata() string { return string(v) }

type Experiment struct {
	Title   string
	Version int
	Inputs  map[string]Input
	Outputs map[string]Output

	tmpDir string
}

func New(title string) *Experiment {
	return &Experiment{
		Title:   title,
		Version: 1,
		Inputs:  make(map[string]Input),
		Outputs: make(map[string]Output),
	}
}

// Metadata collects the values of all inputs.
func (e *Experiment) Metadata() map[string]string {
	m := make(map[string]string, len(e.Inputs))
	for name, in := range e.Inputs {
		m[name] = in.Metadata()
	}
	return m
}

// InstanceName identifies the result set: the title followed by the md5 of
// the version and the sorted input metadata. Equal inputs give equal names.
func (e *Experiment) InstanceName() string {
	metadata := e.Metadata()
	h := md5.New()
	fmt.Fprintf(h, "version %d", e.Version)
	keys := lo.Keys(metadata)
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k + " " + metadata[k]))
	}
	return e.Title + "-" + hex.EncodeToString(h.Sum(nil))
}

// TmpDirectory is only valid while the run function executes.
func (e *Experiment) TmpDirectory() string {
	return e.tmpDir
}

// Execute runs the experiment below baseDir and returns the name of the
// result set. An existing result set with the same name is replaced.
func (e *Experiment) Execute(ctx context.Context, baseDir string, run func(ctx context.Context, e *Experiment) error) (string, error) {
	if e.Title == "" {
		return "", ErrNoTitle
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}

	e.tmpDir, err = os.MkdirTemp("", "texport-")
	if err != nil {
		return "", fmt.Errorf("create tmp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(e.tmpDir); err != nil {
			logrus.Warnf("remove tmp directory %s: %v", e.tmpDir, err)
		}
		e.tmpDir = ""
	}()

	instance := e.InstanceName()
	outDir := filepath.Join(baseDir, instance)
	log := logrus.WithFields(logrus.Fields{
		"experiment": e.Title,
		"instance":   instance,
	})

	if err := e.setupOutputDirectory(outDir); err != nil {
		return "", err
	}

	for name, out := range e.Outputs {
		out.SetBaseDirectory(outDir)
		if err := out.BeforeRun(); err != nil {
			return "", fmt.Errorf("prepare output %s: %w", name, err)
		}
	}

	log.Info("Running experiment")
	if err := run(ctx, e); err != nil {
		log.Errorf("experiment failed: %v", err)
		return "", fmt.Errorf("run %s: %w", e.Title, err)
	}

	g, _ := errgroup.WithContext(ctx)
	for name, out := range e.Outputs {
		g.Go(func() error {
			if err := out.AfterRun(); err != nil {
				return fmt.Errorf("finish output %s: %w", name, err)
			}
			if ro, ok := out.(readOnly); ok {
				if err := ro.ReadOnly(); err != nil {
					return fmt.Errorf("finish output %s: %w", name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	log.Info("Experiment finished")
	return instance, nil
}

func (e *Experiment) setupOutputDirectory(outDir string) error {
	if _, err := os.Stat(outDir); err == nil {
		logrus.Infof("Output directory %s existed already, purging it", outDir)
		if err := makeWritable(outDir); err != nil {
			return err
		}
		if err := os.RemoveAll(outDir); err != nil {
			return fmt.Errorf("purge output directory: %w", err)
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	metadata := e.Metadata()
	metadata[KeyDate] = time.Now().Format(time.RFC3339)
	metadata[KeyName] = e.Title
	metadata[KeyVersion] = strconv.Itoa(e.Version)
	metadata[KeyRunID] = uuid.NewString()
	return writeMetadata(outDir, metadata)
}

// makeWritable restores write permission on read-only results so that the
// directory can be removed.
func makeWritable(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.Chmod(path, info.Mode().Perm()|0o200)
	})
}
