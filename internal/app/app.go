package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ZetoOfficial/texport/internal/experiment"
	"github.com/ZetoOfficial/texport/internal/models"
	"github.com/ZetoOfficial/texport/internal/tex"
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSource  = errors.New("no result source given")
	ErrNoStorage = errors.New("no storage configured")
)

type Storage interface {
	SaveResultSet(ctx context.Context, name string, rs *models.ResultSet) error
	LoadResultSet(ctx context.Context, name string) (*models.ResultSet, error)
	RunQuery(ctx context.Context, queryName string, params map[string]any) ([]map[string]any, error)
}

type Options struct {
	// Input is a JSON or YAML result file. ResultSet names a stored result
	// set and is used when Input is empty.
	Input     string
	ResultSet string
	Store     bool

	Query    string
	QueryKey string

	Formats []string
	BaseDir string
	Title   string
	Version int

	Precision   int
	Escape      bool
	PgfRoot     string
	DatarefRoot string
}

type App struct {
	storage Storage
}

// NewApp creates the application. storage may be nil if no store is
// configured.
func NewApp(storage Storage) *App {
	return &App{storage}
}

// Run exports a result set and returns the name of the created result set
// directory. With only a query given, the query rows are logged instead.
func (a *App) Run(ctx context.Context, opts Options) (string, error) {
	if opts.Store && a.storage == nil {
		return "", ErrNoStorage
	}
	if opts.Input == "" && opts.ResultSet == "" {
		if opts.Query == "" {
			return "", ErrNoSource
		}
		rows, err := a.query(ctx, opts)
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			logrus.Info(row)
		}
		return "", nil
	}

	rs, source, err := a.load(ctx, opts)
	if err != nil {
		return "", err
	}
	if opts.Query != "" {
		rows, err := a.query(ctx, opts)
		if err != nil {
			return "", err
		}
		for _, v := range queryValues(opts.Query, rows) {
			rs.Set(v)
		}
	}
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.Debugf("Loaded values:\n%s", spew.Sdump(rs.Values))
	}

	title := opts.Title
	if title == "" {
		title = rs.Experiment
	}
	if opts.Version > 0 {
		rs.Version = opts.Version
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = AllFormats
	}

	e, fill, err := a.build(title, rs, formats, opts)
	if err != nil {
		return "", err
	}
	e.Inputs["source"] = experiment.Value(source)

	instance, err := e.Execute(ctx, opts.BaseDir, func(ctx context.Context, e *experiment.Experiment) error {
		return fill()
	})
	if err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"instance": instance,
		"formats":  strings.Join(formats, ","),
		"values":   len(rs.Values),
	}).Info("Export finished")

	if opts.Store {
		logrus.Info("Save result set to storage")
		if err := a.storage.SaveResultSet(ctx, instance, rs); err != nil {
			return instance, fmt.Errorf("save result set: %w", err)
		}
	}
	return instance, nil
}

func (a *App) load(ctx context.Context, opts Options) (*models.ResultSet, string, error) {
	if opts.Input != "" {
		logrus.Infof("Load results from %s", opts.Input)
		rs, err := models.LoadResultSet(opts.Input)
		if err != nil {
			return nil, "", fmt.Errorf("load results: %w", err)
		}
		return rs, opts.Input, nil
	}
	if a.storage == nil {
		return nil, "", ErrNoStorage
	}
	logrus.Infof("Load result set %s from storage", opts.ResultSet)
	rs, err := a.storage.LoadResultSet(ctx, opts.ResultSet)
	if err != nil {
		return nil, "", fmt.Errorf("load result set: %w", err)
	}
	return rs, "store:" + opts.ResultSet, nil
}

func (a *App) query(ctx context.Context, opts Options) ([]map[string]any, error) {
	if a.storage == nil {
		return nil, ErrNoStorage
	}
	logrus.Infof("Run query: %s", opts.Query)
	rows, err := a.storage.RunQuery(ctx, opts.Query, map[string]any{"key": opts.QueryKey})
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	return rows, nil
}

// queryValues turns query rows into values below query/<name>/<row>/<column>.
func queryValues(name string, rows []map[string]any) []models.Value {
	var values []models.Value
	for i, row := range rows {
		columns := make([]string, 0, len(row))
		for c := range row {
			columns = append(columns, c)
		}
		sort.Strings(columns)
		for _, c := range columns {
			if row[c] == nil {
				continue
			}
			values = append(values, models.Value{
				Key:   "query/" + name + "/" + strconv.Itoa(i+1) + "/" + c,
				Value: row[c],
			})
		}
	}
	return values
}

func (a *App) build(title string, rs *models.ResultSet, formats []string, opts Options) (*experiment.Experiment, func() error, error) {
	e := experiment.New(title)
	e.Version = rs.Version
	for k, v := range rs.Metadata {
		e.Inputs[k] = experiment.Value(v)
	}
	e.Inputs["formats"] = experiment.Value(strings.Join(formats, ","))

	eo := exportOptions{
		Precision:   opts.Precision,
		Escape:      opts.Escape,
		PgfRoot:     opts.PgfRoot,
		DatarefRoot: opts.DatarefRoot,
	}
	var fills []func() error
	for _, f := range formats {
		switch f {
		case FormatMacros:
			m := tex.NewMacros("macros.tex")
			e.Outputs[f] = m
			fills = append(fills, func() error { return fillMacros(m, rs, eo) })
		case FormatPgfKeys:
			p := tex.NewPgfKeyDict("pgfkeys.tex", eo.PgfRoot)
			e.Outputs[f] = p
			fills = append(fills, func() error { return fillPgfKeys(p, rs, eo) })
		case FormatDataref:
			d := tex.NewDatarefDict("dataref.tex", eo.DatarefRoot)
			e.Outputs[f] = d
			fills = append(fills, func() error { return fillDataref(d, rs, eo) })
		case FormatLua:
			l := tex.NewLuaTable("data.lua")
			e.Outputs[f] = l
			fills = append(fills, func() error { return fillLua(l, rs, eo) })
		default:
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
		}
	}
	return e, func() error {
		for i, fill := range fills {
			if err := fill(); err != nil {
				return fmt.Errorf("%s: %w", formats[i], err)
			}
		}
		return nil
	}, nil
}

// List writes the result sets of title found in baseDir to w. Result sets
// named in the metadata of a listed set follow it, indented by one level.
func (a *App) List(w io.Writer, baseDir, title string) error {
	sets, err := experiment.List(baseDir, title)
	if err != nil {
		return err
	}
	for _, set := range sets {
		listSet(w, baseDir, set, 0, make(map[string]bool))
	}
	return nil
}

// listSet prints set and its children. path holds the sets above set and
// stops reference cycles.
func listSet(w io.Writer, baseDir string, set experiment.ResultSet, indent int, path map[string]bool) {
	fmt.Fprintf(w, "+%s%s\n", strings.Repeat("-", indent), set.Name)
	keys := make([]string, 0, len(set.Metadata))
	for k := range set.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pad := strings.Repeat(" ", indent+2)
	for _, k := range keys {
		fmt.Fprintf(w, "|%s%s: %s\n", pad, k, set.Metadata[k])
	}

	path[set.Name] = true
	defer delete(path, set.Name)
	for _, child := range experiment.Children(baseDir, set) {
		if path[child.Name] {
			continue
		}
		listSet(w, baseDir, child, indent+3, path)
	}
}
