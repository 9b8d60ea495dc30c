package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/repositories"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
	"github.com/desertthunder/novelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration.
//
// Without an API service one is built from the config's [api] section, on HTTPClient when given.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.API == nil {
		opts.API = services.NewAPIServiceWithOptions(services.APIOptions{
			BaseURL:    opts.Config.API.BaseURL,
			Timeout:    opts.Config.API.Timeout.Duration,
			RateLimit:  opts.Config.API.RateLimit,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		})
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		engine:     tasks.NewEngine(opts.API),
	}
}

// SetLogger replaces the logger used by commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, worksCommand, chaptersCommand, groupsCommand, promptsCommand, translateCommand,
		explainCommand, labCommand, scrapeCommand, exportCommand, historyCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openHistory opens the navigation history store. The caller closes it with the returned func.
func (r *Runner) openHistory() (*repositories.HistoryRepository, func(), error) {
	db, err := shared.OpenHistoryDatabase(r.config.History)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewHistoryRepository(db, r.config.History.Limit), func() { db.Close() }, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

func (r *Runner) writeTable(headers []string, rows [][]string, aligns ...formatter.Align) error {
	return r.writePlain("%s\n", formatter.RenderTable(headers, rows, aligns))
}

// confirm asks a yes/no question on the runner's input unless skip is set.
// Anything but y or yes declines with [shared.ErrNotConfirmed].
func (r *Runner) confirm(skip bool, format string, args ...any) error {
	if skip {
		return nil
	}
	if err := r.writePlain(format+" [y/N] ", args...); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r.input)
	if scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	return shared.ErrNotConfirmed
}

// parseIDs reads a comma or space separated list of positive ids.
func parseIDs(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q is not a valid id", shared.ErrInvalidArgument, f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// requireID rejects a missing or non-positive positional id.
func requireID(name string, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return nil
}

// apiError wraps a backend error with the readable message the backend gave, or fallback.
func apiError(err error, fallback string) error {
	return fmt.Errorf("%w: %s", shared.ErrAPIRequest, services.ErrorMessage(err, fallback))
}
