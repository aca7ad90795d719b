package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/plwatch/internal/metrics"
	"github.com/desertthunder/plwatch/internal/repositories"
	"github.com/desertthunder/plwatch/internal/server"
	"github.com/desertthunder/plwatch/internal/services"
	"github.com/desertthunder/plwatch/internal/shared"
	"github.com/desertthunder/plwatch/internal/tasks"
	"github.com/desertthunder/plwatch/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// runHistory is the number of cycle records kept in the database.
const runHistory = 500

// Watch validates the invocation, wires the collaborators and runs the reconciliation loop.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	self := cmd.String("username")
	recipient := cmd.String("phone-number")
	if err := shared.ValidatePhoneNumber(recipient); err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	applyWatchFlags(config, cmd)
	if err := r.validateWatch(config, cmd.Bool("dry-run")); err != nil {
		return err
	}

	source, auth, err := r.playlistSource(ctx, config)
	if err != nil {
		return err
	}
	messenger, err := r.buildMessenger(config, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}

	db, err := shared.OpenStateDatabase(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	runs := repositories.NewRunRepository(db)
	if n, err := runs.Prune(ctx, runHistory); err != nil {
		r.logger.Warn("failed to prune cycle history", "error", err)
	} else if n > 0 {
		r.logger.Debugf("pruned %d old cycle records", n)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	if addr := config.Server.MetricsAddr; addr != "" {
		go r.serveMetrics(ctx, addr, recorder)
	}

	w := config.Watch
	reconciler, err := tasks.NewReconciler(tasks.ReconcilerOpts{
		Source:     source,
		Auth:       auth,
		Dispatcher: tasks.NewDispatcher(messenger, w.MessagesPerSecond),
		Store:      repositories.NewRegistryRepository(db),
		Runs:       runs,
		Metrics:    recorder,
		Logger:     r.logger,
		Options: tasks.WatchOptions{
			Account:     config.Credentials.Spotify.Username,
			Playlists:   w.Playlists,
			Self:        self,
			Recipient:   recipient,
			Interval:    w.Interval,
			Concurrency: w.Concurrency,
			Match:       tasks.EqualityFor(w.Match),
		},
	})
	if err != nil {
		return err
	}

	r.writePlain("%s\n", ui.Banner(config.Credentials.Spotify.Username, w.Playlists, recipient, w.Interval))

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.writePlain("%s\n", ui.Progress(update))
		}
	}()

	if cmd.Bool("once") {
		run, err := reconciler.Cycle(ctx, progress)
		close(progress)
		<-printed
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(run, true)
		}
		return nil
	}

	err = reconciler.Run(ctx, progress)
	close(progress)
	<-printed
	if err != nil {
		return fmt.Errorf("watch stopped: %w", err)
	}
	r.logger.Info("watch stopped")
	return nil
}

// applyWatchFlags lets command-line flags override the [shared.WatchConfig] section.
func applyWatchFlags(config *shared.Config, cmd *cli.Command) {
	if names := cmd.StringSlice("playlist"); len(names) > 0 {
		config.Watch.Playlists = names
	}
	if cmd.IsSet("interval") {
		config.Watch.Interval = cmd.Duration("interval")
	}
	if cmd.IsSet("concurrency") {
		config.Watch.Concurrency = int(cmd.Int("concurrency"))
	}
}

func (r *Runner) validateWatch(config *shared.Config, dryRun bool) error {
	if err := config.ValidateWatch(); err != nil {
		return err
	}
	if config.Credentials.Spotify.Username == "" {
		return fmt.Errorf("%w: spotify username (SPOTIFY_USERNAME)", shared.ErrMissingCredentials)
	}
	if r.source == nil {
		if err := config.ValidateSpotify(); err != nil {
			return err
		}
	}
	if r.messenger == nil && !dryRun {
		return config.ValidateTwilio()
	}
	return nil
}

// playlistSource returns the injected source, or an authenticated Spotify client whose refreshed tokens are saved to the config file.
func (r *Runner) playlistSource(ctx context.Context, config *shared.Config) (services.PlaylistSource, oauth2.TokenSource, error) {
	if r.source != nil {
		return r.source, r.auth, nil
	}

	spotifyService, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}

	saved := config.Credentials.Spotify.Token()
	spotifyService.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if saved != nil && token.AccessToken == saved.AccessToken {
			return
		}
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to save refreshed token", "error", err)
			return
		}
		r.logger.Debug("saved refreshed token", "expiry", token.Expiry)
	})

	if err := spotifyService.Authenticate(ctx, saved); err != nil {
		return nil, nil, err
	}
	return spotifyService, spotifyService, nil
}

func (r *Runner) buildMessenger(config *shared.Config, dryRun bool) (services.Messenger, error) {
	switch {
	case r.messenger != nil:
		return r.messenger, nil
	case dryRun:
		return services.NewLogMessenger(r.logger), nil
	}

	tw := config.Credentials.Twilio
	messenger, err := services.NewTwilioMessenger(tw.AccountSID, tw.AuthToken, tw.FromNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to create Twilio messenger: %w", err)
	}
	return messenger, nil
}

// serveMetrics exposes the recorder on addr until ctx is done.
func (r *Runner) serveMetrics(ctx context.Context, addr string, recorder *metrics.Recorder) {
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(server.NewMetricsHandler(recorder.Handler()))

	r.logger.Info("serving metrics", "addr", addr)
	if err := server.Serve(ctx, addr, router, r.logger, nil); err != nil {
		r.logger.Error("metrics server failed", "error", err)
	}
}
