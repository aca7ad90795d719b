package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plwatch/internal/models"
	"github.com/desertthunder/plwatch/internal/shared"
	tu "github.com/desertthunder/plwatch/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const testPhone = "+15551234567"

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "state.db")
	config.Credentials.Spotify.Username = "owner"
	config.Watch.Playlists = []string{"Road Trip"}
	return config
}

// watchHarness is a runner wired to in-memory collaborators.
type watchHarness struct {
	runner    *Runner
	source    *tu.FakeSource
	messenger *tu.FakeMessenger
	output    *bytes.Buffer
}

func newWatchHarness(t *testing.T) *watchHarness {
	t.Helper()
	source := tu.NewFakeSource(0,
		tu.NewFakePlaylist("p1", "Road Trip", "v1",
			models.Track{ID: "1", Name: "A", AddedBy: "u1"},
			models.Track{ID: "2", Name: "B", AddedBy: "u1"},
		),
		tu.NewFakePlaylist("p2", "Chores", "c1"),
	)
	messenger := &tu.FakeMessenger{}
	output := &bytes.Buffer{}

	runner := NewRunner(RunnerOpts{
		Config:    testConfig(t),
		Logger:    log.New(&bytes.Buffer{}),
		Output:    output,
		Source:    source,
		Auth:      &tu.FakeTokenSource{},
		Messenger: messenger,
	})
	return &watchHarness{runner: runner, source: source, messenger: messenger, output: output}
}

func (h *watchHarness) run(t *testing.T, command func(*Runner) *cli.Command, args ...string) error {
	t.Helper()
	h.output.Reset()
	cmd := command(h.runner)
	return cmd.Run(context.Background(), append([]string{cmd.Name}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			source := tu.NewFakeSource(0)
			messenger := &tu.FakeMessenger{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Source:     source,
				Messenger:  messenger,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.source != source {
				t.Error("expected source to be set")
			}
			if runner.messenger != messenger {
				t.Error("expected messenger to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		var names []string
		for _, cmd := range runner.register() {
			names = append(names, cmd.Name)
		}
		if got := strings.Join(names, ","); got != "watch,auth,setup,status,reset" {
			t.Errorf("unexpected commands %s", got)
		}
	})

	t.Run("verbose flag enables debug logging", func(t *testing.T) {
		logger := log.New(&bytes.Buffer{})
		runner := NewRunner(RunnerOpts{Logger: logger})
		root := &cli.Command{
			Name:   "plwatch",
			Flags:  []cli.Flag{&cli.BoolFlag{Name: "verbose"}},
			Before: runner.before,
			Action: func(context.Context, *cli.Command) error { return nil },
		}

		if err := root.Run(context.Background(), []string{"plwatch", "--verbose"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if logger.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", logger.GetLevel())
		}
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
			if output.String() != "{\"key\":\"value\"}\n" {
				t.Errorf("expected compact JSON, got %q", output.String())
			}
		})

		t.Run("returns error for unmarshalable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("returns error when write fails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats output", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello %s, count: %d\n", "World", 42); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "Hello World, count: 42\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("done"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "\ndone\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("returns error when write fails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlain("test"); err == nil {
				t.Error("expected error when write fails")
			}
		})
	})

	t.Run("saveTokens", func(t *testing.T) {
		t.Run("nil config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if err := runner.saveTokens(&oauth2.Token{AccessToken: "a"}); err == nil {
				t.Error("expected error for nil config")
			}
		})

		t.Run("without config path keeps the token in memory", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config, Logger: log.New(&bytes.Buffer{})})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Credentials.Spotify.AccessToken != "a" {
				t.Errorf("expected access token on config, got %q", config.Credentials.Spotify.AccessToken)
			}
		})

		t.Run("writes the config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), ConfigPath: path})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			loaded, err := shared.LoadConfig(path)
			if err != nil {
				t.Fatalf("failed to load saved config: %v", err)
			}
			if loaded.Credentials.Spotify.RefreshToken != "r" {
				t.Errorf("expected refresh token to be saved, got %q", loaded.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("rejects empty token", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig()})
			if err := runner.saveTokens(&oauth2.Token{}); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "plwatch.db")
	t.Setenv("PLWATCH_DB_PATH", dbPath)

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: log.New(&bytes.Buffer{}), Output: output})

	cmd := setupCommand(runner)
	if err := cmd.Run(context.Background(), []string{"setup", "-c", configPath}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, configPath)
	tu.AssertFileExists(t, dbPath)
	if !strings.Contains(output.String(), "Created "+configPath) {
		t.Errorf("expected config creation message, got %s", output.String())
	}
	if !strings.Contains(output.String(), "schema version") {
		t.Errorf("expected schema version in output, got %s", output.String())
	}
	if !strings.Contains(tu.MustReadFile(t, configPath), "[watch]") {
		t.Error("expected config to be created from the template")
	}
}

func TestAuth(t *testing.T) {
	t.Run("requires client credentials", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = ""
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})

		cmd := authCommand(runner)
		err := cmd.Run(context.Background(), []string{"auth"})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestWatch(t *testing.T) {
	t.Run("rejects an invalid phone number", func(t *testing.T) {
		h := newWatchHarness(t)
		err := h.run(t, watchCommand, "-u", "u1", "-p", "555-1234", "--once")
		if !errors.Is(err, shared.ErrInvalidPhoneNumber) {
			t.Errorf("expected ErrInvalidPhoneNumber, got %v", err)
		}
		if h.source.Calls("list") != 0 {
			t.Error("expected no requests before validation passes")
		}
	})

	t.Run("requires messaging credentials unless dry run", func(t *testing.T) {
		h := newWatchHarness(t)
		h.runner.messenger = nil

		err := h.run(t, watchCommand, "-u", "u1", "-p", testPhone, "--once")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}

		if err := h.run(t, watchCommand, "-u", "u1", "-p", testPhone, "--once", "--dry-run"); err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
	})

	t.Run("initializes then notifies on a collaborator add", func(t *testing.T) {
		h := newWatchHarness(t)

		if err := h.run(t, watchCommand, "-u", "u1", "-p", testPhone, "--once"); err != nil {
			t.Fatalf("first cycle failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "Road Trip") {
			t.Errorf("expected banner to list the playlist, got %s", h.output.String())
		}
		if len(h.messenger.Messages()) != 0 {
			t.Fatal("initialization must not notify")
		}

		h.source.SetTracks("p1", "v2",
			models.Track{ID: "1", Name: "A", AddedBy: "u1"},
			models.Track{ID: "2", Name: "B", AddedBy: "u1"},
			models.Track{ID: "3", Name: "C", AddedBy: "u2"},
		)

		if err := h.run(t, watchCommand, "-u", "u1", "-p", testPhone, "--once", "--json"); err != nil {
			t.Fatalf("second cycle failed: %v", err)
		}

		msgs := h.messenger.Messages()
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(msgs))
		}
		if msgs[0].Recipient != testPhone {
			t.Errorf("expected recipient %s, got %s", testPhone, msgs[0].Recipient)
		}
		want := `u2 added "C" to "Road Trip"; have a listen: https://open.example/playlist/p1`
		if msgs[0].Body != want {
			t.Errorf("expected body %q, got %q", want, msgs[0].Body)
		}
		if !strings.Contains(h.output.String(), `"notified": 1`) {
			t.Errorf("expected cycle record in output, got %s", h.output.String())
		}
		if h.source.Calls("list") != 1 {
			t.Errorf("expected the saved registry to be reused, listed %d times", h.source.Calls("list"))
		}
	})

	t.Run("playlist flag overrides config", func(t *testing.T) {
		h := newWatchHarness(t)

		if err := h.run(t, watchCommand, "-u", "u1", "-p", testPhone, "--once", "--playlist", "Chores"); err != nil {
			t.Fatalf("cycle failed: %v", err)
		}
		if h.source.Calls("playlist:p2") != 1 || h.source.Calls("playlist:p1") != 0 {
			t.Error("expected only the flagged playlist to be fetched")
		}
	})

	t.Run("auth failure stops the watch", func(t *testing.T) {
		h := newWatchHarness(t)
		h.runner.auth = &tu.FakeTokenSource{Err: shared.ErrAuthUnavailable}

		err := h.run(t, watchCommand, "-u", "u1", "-p", testPhone, "--interval", "10ms")
		if !errors.Is(err, shared.ErrAuthUnavailable) {
			t.Errorf("expected ErrAuthUnavailable, got %v", err)
		}
	})
}

func TestStatusAndReset(t *testing.T) {
	h := newWatchHarness(t)
	if err := h.run(t, watchCommand, "-u", "u1", "-p", testPhone, "--once"); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	t.Run("text", func(t *testing.T) {
		if err := h.run(t, statusCommand); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "Road Trip") || !strings.Contains(out, "Recent cycles") {
			t.Errorf("unexpected status output %s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		if err := h.run(t, statusCommand, "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(h.output.String(), `"version_marker": "v1"`) {
			t.Errorf("expected version marker in JSON, got %s", h.output.String())
		}
	})

	t.Run("playlist csv to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "road-trip.csv")
		if err := h.run(t, statusCommand, "--playlist", "Road Trip", "--format", "csv", "-o", path); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "A") || !strings.Contains(content, "u1") {
			t.Errorf("unexpected CSV %s", content)
		}
	})

	t.Run("playlist json lists tracks", func(t *testing.T) {
		if err := h.run(t, statusCommand, "--playlist", "Road Trip", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(h.output.String(), `"tracks"`) {
			t.Errorf("expected tracks in JSON, got %s", h.output.String())
		}
	})

	t.Run("unknown playlist", func(t *testing.T) {
		err := h.run(t, statusCommand, "--playlist", "Nope")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		err := h.run(t, statusCommand, "--format", "markdown")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("reset", func(t *testing.T) {
		if err := h.run(t, resetCommand, "--history"); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		if err := h.run(t, statusCommand); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "No saved registry") {
			t.Errorf("expected empty status after reset, got %s", h.output.String())
		}
	})
}
