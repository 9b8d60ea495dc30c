package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
	tu "github.com/desertthunder/novelx/internal/testing"
	"github.com/urfave/cli/v3"
)

// newBackend serves the given handlers and returns a runner pointed at it.
func newBackend(t *testing.T, output *bytes.Buffer, input string, handlers map[string]http.HandlerFunc) *Runner {
	t.Helper()

	mux := http.NewServeMux()
	for pattern, h := range handlers {
		mux.HandleFunc(pattern, h)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	config := shared.DefaultConfig()
	config.API.BaseURL = server.URL
	config.History.Path = filepath.Join(t.TempDir(), "history.db")

	return NewRunner(RunnerOpts{
		Config: config,
		API:    services.NewAPIService(server.URL, server.Client()),
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Output: output,
		Input:  strings.NewReader(input),
	})
}

func runArgs(r *Runner, args ...string) error {
	root := &cli.Command{Name: "novelx", Commands: r.register()}
	return root.Run(context.Background(), append([]string{"novelx"}, args...))
}

func writeBody(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			api := services.NewAPIService("http://example.com", nil)
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "config.toml",
				API:        api,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.engine == nil {
				t.Error("expected engine to be built")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
		})

		t.Run("without api builds one from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.API.BaseURL = "http://backend.test/"

			runner := NewRunner(RunnerOpts{Config: config})

			if runner.api == nil {
				t.Fatal("expected api to be built")
			}
			if runner.api.BaseURL() != "http://backend.test" {
				t.Errorf("expected base URL from config, got %s", runner.api.BaseURL())
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("confirm", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
			skip  bool
			want  error
		}{
			{name: "yes", input: "y\n"},
			{name: "full word", input: "YES\n"},
			{name: "no", input: "n\n", want: shared.ErrNotConfirmed},
			{name: "empty input", input: "", want: shared.ErrNotConfirmed},
			{name: "skip", input: "", skip: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				output := &bytes.Buffer{}
				runner := NewRunner(RunnerOpts{Output: output, Input: strings.NewReader(tt.input)})

				err := runner.confirm(tt.skip, "Delete %d?", 3)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if tt.skip && output.Len() != 0 {
					t.Errorf("expected no prompt when skipped, got %q", output.String())
				}
				if !tt.skip && !strings.Contains(output.String(), "Delete 3? [y/N]") {
					t.Errorf("expected prompt, got %q", output.String())
				}
			})
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		seen := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if seen[cmd.Name] {
				t.Errorf("command %s registered twice", cmd.Name)
			}
			seen[cmd.Name] = true
		}
		for _, name := range []string{"works", "chapters", "groups", "prompts", "translate", "scrape", "export", "tui"} {
			if !seen[name] {
				t.Errorf("expected %s command", name)
			}
		}
	})
}

func TestParseIDs(t *testing.T) {
	t.Run("comma and space separated", func(t *testing.T) {
		ids, err := parseIDs("3, 1,2  9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := []int{3, 1, 2, 9}
		if len(ids) != len(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("expected %v, got %v", want, ids)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		ids, err := parseIDs("")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no ids, got %v", ids)
		}
	})

	t.Run("rejects invalid ids", func(t *testing.T) {
		for _, s := range []string{"1,abc", "0", "-4"} {
			if _, err := parseIDs(s); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("%q: expected ErrInvalidArgument, got %v", s, err)
			}
		}
	})
}

func TestRequireID(t *testing.T) {
	if err := requireID("work-id", 4); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	err := requireID("work-id", 0)
	if !errors.Is(err, shared.ErrMissingArgument) {
		t.Fatalf("expected ErrMissingArgument, got %v", err)
	}
	if !strings.Contains(err.Error(), "work-id") {
		t.Errorf("expected argument name in error, got %v", err)
	}
}

func TestCommands(t *testing.T) {
	t.Run("works list renders a table", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newBackend(t, output, "", map[string]http.HandlerFunc{
			"GET /works/": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("q") != "tower" {
					t.Errorf("expected query to be forwarded, got %q", r.URL.RawQuery)
				}
				writeBody(t, w, models.Page[models.Work]{
					Items: []models.Work{{ID: 1, Title: "Tower of Dawn"}},
					Total: 1,
				})
			},
		})

		if err := runArgs(runner, "works", "list", "--query", "tower"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Tower of Dawn") {
			t.Errorf("expected work title in output, got %q", output.String())
		}
		if !strings.Contains(output.String(), "Showing 1 of 1 works") {
			t.Errorf("expected summary line, got %q", output.String())
		}
	})

	t.Run("works list as JSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newBackend(t, output, "", map[string]http.HandlerFunc{
			"GET /works/": func(w http.ResponseWriter, r *http.Request) {
				writeBody(t, w, models.Page[models.Work]{Items: []models.Work{{ID: 1, Title: "Sea of Reeds"}}, Total: 1})
			},
		})

		if err := runArgs(runner, "works", "list", "--json", "--pretty=false"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var page models.Page[models.Work]
		if err := json.Unmarshal(output.Bytes(), &page); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if len(page.Items) != 1 || page.Items[0].Title != "Sea of Reeds" {
			t.Errorf("unexpected page %+v", page)
		}
	})

	t.Run("works show maps 404 to work not found", func(t *testing.T) {
		runner := newBackend(t, &bytes.Buffer{}, "", map[string]http.HandlerFunc{
			"GET /works/9": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				writeBody(t, w, map[string]string{"detail": "Work not found"})
			},
		})

		err := runArgs(runner, "works", "show", "9")
		if !errors.Is(err, shared.ErrWorkNotFound) {
			t.Errorf("expected ErrWorkNotFound, got %v", err)
		}
	})

	t.Run("groups delete", func(t *testing.T) {
		t.Run("declined confirmation makes no request", func(t *testing.T) {
			called := false
			runner := newBackend(t, &bytes.Buffer{}, "n\n", map[string]http.HandlerFunc{
				"DELETE /works/2/chapter-groups/7": func(w http.ResponseWriter, r *http.Request) {
					called = true
					w.WriteHeader(http.StatusNoContent)
				},
			})

			err := runArgs(runner, "groups", "delete", "2", "7")
			if !errors.Is(err, shared.ErrNotConfirmed) {
				t.Errorf("expected ErrNotConfirmed, got %v", err)
			}
			if called {
				t.Error("expected no delete request")
			}
		})

		t.Run("confirmed delete", func(t *testing.T) {
			called := false
			output := &bytes.Buffer{}
			runner := newBackend(t, output, "y\n", map[string]http.HandlerFunc{
				"DELETE /works/2/chapter-groups/7": func(w http.ResponseWriter, r *http.Request) {
					called = true
					w.WriteHeader(http.StatusNoContent)
				},
			})

			if err := runArgs(runner, "groups", "delete", "2", "7"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !called {
				t.Error("expected delete request")
			}
			if !strings.Contains(output.String(), "Group 7 deleted") {
				t.Errorf("expected confirmation output, got %q", output.String())
			}
		})
	})

	t.Run("groups create rejects an empty selection", func(t *testing.T) {
		runner := newBackend(t, &bytes.Buffer{}, "", nil)

		err := runArgs(runner, "groups", "create", "2", "--name", "Arc One")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("missing work id", func(t *testing.T) {
		runner := newBackend(t, &bytes.Buffer{}, "", nil)

		err := runArgs(runner, "chapters", "list")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("api get prints JSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newBackend(t, output, "", map[string]http.HandlerFunc{
			"GET /models/": func(w http.ResponseWriter, r *http.Request) {
				writeBody(t, w, models.ModelsList{Items: []models.ModelInfo{{ID: "gpt-4o-mini"}}, Total: 1})
			},
		})

		if err := runArgs(runner, "api", "get", "models/"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"gpt-4o-mini"`) {
			t.Errorf("expected model id in output, got %q", output.String())
		}
	})

	t.Run("api post rejects invalid JSON", func(t *testing.T) {
		runner := newBackend(t, &bytes.Buffer{}, "", nil)

		err := runArgs(runner, "api", "post", "/works/import", "--data", "{not json")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("history", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newBackend(t, output, "", nil)

		repo, closeDB, err := runner.openHistory()
		if err != nil {
			t.Fatalf("failed to open history: %v", err)
		}
		if _, err := repo.Append("/works/3/chapters/12"); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		closeDB()

		if err := runArgs(runner, "history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "/works/3/chapters/12") || !strings.Contains(output.String(), "chapter") {
			t.Errorf("expected history entry, got %q", output.String())
		}

		output.Reset()
		if err := runArgs(runner, "history", "clear", "--yes"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		output.Reset()
		if err := runArgs(runner, "history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No history yet") {
			t.Errorf("expected empty history, got %q", output.String())
		}
	})

	t.Run("history clear keeps the newest entries", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newBackend(t, output, "", nil)

		repo, closeDB, err := runner.openHistory()
		if err != nil {
			t.Fatalf("failed to open history: %v", err)
		}
		for _, path := range []string{"/works/1", "/works/2", "/works/3"} {
			if _, err := repo.Append(path); err != nil {
				t.Fatalf("failed to append: %v", err)
			}
		}
		closeDB()

		if err := runArgs(runner, "history", "clear", "--yes", "--keep", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Removed 2 entries") {
			t.Errorf("expected removal count, got %q", output.String())
		}

		output.Reset()
		if err := runArgs(runner, "history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "/works/3") || strings.Contains(output.String(), "/works/1") {
			t.Errorf("expected only the newest entry, got %q", output.String())
		}

		if err := runArgs(runner, "history", "clear", "--yes", "--keep=-1"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("setup database", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		dbPath := filepath.Join(dir, "data", "history.db")
		content := "[history]\nenabled = true\npath = \"" + filepath.ToSlash(dbPath) + "\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := newBackend(t, &bytes.Buffer{}, "", nil)
		if err := runArgs(runner, "setup", "database", "--config", configPath); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, dbPath)
	})
}
