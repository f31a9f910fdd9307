package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/ZetoOfficial/texport/internal/app"
	"github.com/ZetoOfficial/texport/internal/config"
	"github.com/ZetoOfficial/texport/internal/storage"
	"github.com/samber/lo"
)

type Args struct {
	App      app.Options
	Source   string
	List     bool
	Watch    bool
	LogLevel string
	LogFile  string
}

// ParseArgs parses the command line. Defaults come from cfg.
func ParseArgs(fs *flag.FlagSet, args []string, cfg config.Config) (Args, error) {
	input := fs.String("input", "", "Result file to export (.json, .yaml or .yml).")
	source := fs.String("source", "file", "Where results are read from: file or neo4j.")
	resultSet := fs.String("result_set", "", "Name of a stored result set (with -source neo4j).")
	store := fs.Bool("store", false, "Save the exported result set to neo4j.")
	query := fs.String("query", "", fmt.Sprintf("Predefined query whose rows are exported too (%s).", strings.Join(storage.QueryNames(), ", ")))
	queryKey := fs.String("query_key", "", "Value key passed to the query.")
	formats := fs.String("format", app.FormatAll, "Comma separated export formats: macros, pgfkeys, dataref, lua or all.")
	baseDir := fs.String("base_dir", cfg.BaseDir, "Directory which is used for storing the result sets.")
	title := fs.String("title", "", "Experiment title (default is the experiment name of the results).")
	version := fs.Int("version", 0, "Experiment version (default is the version of the results).")
	precision := fs.Int("precision", cfg.Precision, "Decimal places of floating point values (-1 keeps all).")
	escape := fs.Bool("escape", false, "Escape TeX special characters in string values.")
	pgfRoot := fs.String("pgf_root", cfg.PgfRoot, "Key prefix of the pgfkeys export.")
	datarefRoot := fs.String("dataref_root", cfg.DatarefRoot, "Key prefix of the dataref export.")
	list := fs.Bool("list", false, "List all result sets of -title in -base_dir.")
	watch := fs.Bool("watch", false, "Export again whenever -input changes.")
	logLevel := fs.String("log_level", "INFO", "Set the logging level (DEBUG, INFO, WARNING, ERROR).")
	logFile := fs.String("log_file", "", "Set the log file path. If not set, logs will be printed to stderr.")

	if err := fs.Parse(args); err != nil {
		return Args{}, err
	}

	parsed := Args{
		Source:   *source,
		List:     *list,
		Watch:    *watch,
		LogLevel: *logLevel,
		LogFile:  *logFile,
		App: app.Options{
			Input:       *input,
			ResultSet:   *resultSet,
			Store:       *store,
			Query:       *query,
			QueryKey:    *queryKey,
			BaseDir:     *baseDir,
			Title:       *title,
			Version:     *version,
			Precision:   *precision,
			Escape:      *escape,
			PgfRoot:     *pgfRoot,
			DatarefRoot: *datarefRoot,
		},
	}

	switch parsed.Source {
	case "file":
		if parsed.App.Input == "" && !parsed.List && parsed.App.Query == "" {
			return Args{}, fmt.Errorf("-input is required with -source file")
		}
		parsed.App.ResultSet = ""
	case "neo4j":
		if parsed.App.ResultSet == "" && parsed.App.Query == "" {
			return Args{}, fmt.Errorf("-result_set or -query is required with -source neo4j")
		}
		parsed.App.Input = ""
	default:
		return Args{}, fmt.Errorf("unknown source %q", parsed.Source)
	}

	if parsed.App.Query != "" && !lo.Contains(storage.QueryNames(), parsed.App.Query) {
		return Args{}, fmt.Errorf("query %s not found", parsed.App.Query)
	}
	if parsed.Watch && parsed.App.Input == "" {
		return Args{}, fmt.Errorf("-watch needs -input")
	}
	if parsed.List && parsed.App.Title == "" {
		return Args{}, fmt.Errorf("-list needs -title")
	}

	f, err := app.ParseFormats(*formats)
	if err != nil {
		return Args{}, err
	}
	parsed.App.Formats = f
	return parsed, nil
}

// NeedsStorage reports whether the parsed arguments use neo4j.
func (a Args) NeedsStorage() bool {
	return a.Source == "neo4j" || a.App.Store || a.App.Query != ""
}
