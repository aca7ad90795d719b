package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plwatch/internal/metrics"
	"github.com/desertthunder/plwatch/internal/models"
	"github.com/desertthunder/plwatch/internal/services"
	"github.com/desertthunder/plwatch/internal/shared"
	"golang.org/x/oauth2"
)

const (
	DefaultInterval = time.Minute

	phaseInitialize = "initialize"
	phaseReconcile  = "reconcile"
)

// State of a [Reconciler].
type State int

const (
	Uninitialized State = iota // no registry loaded or built yet
	Initializing               // resolving configured names
	SteadyState                // reconciling the registry every cycle
	Stopped                    // terminated by auth failure or shutdown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case SteadyState:
		return "steady"
	case Stopped:
		return "stopped"
	default:
		return ""
	}
}

// RegistryStore persists the registry as a whole. Load reports found=false when nothing has been saved.
type RegistryStore interface {
	Load(ctx context.Context) (models.Registry, bool, error)
	Save(ctx context.Context, reg models.Registry) error
}

// RunRecorder keeps a history of cycles.
type RunRecorder interface {
	Record(ctx context.Context, run *models.SyncRun) error
}

// WatchOptions is the resolved configuration of a watch.
type WatchOptions struct {
	Account     string        // account whose playlists are scanned at initialization
	Playlists   []string      // names of the playlists to track
	Self        string        // adds by this user id never notify
	Recipient   string        // phone number receiving alerts
	Interval    time.Duration // pause between cycles
	Concurrency int           // playlists fetched at once
	Match       Equality      // track identity used by the diff
}

// ReconcilerOpts holds the collaborators of a [Reconciler].
type ReconcilerOpts struct {
	Source     services.PlaylistSource
	Auth       oauth2.TokenSource // optional; checked at the start of every cycle
	Dispatcher *Dispatcher
	Store      RegistryStore
	Runs       RunRecorder       // optional
	Metrics    *metrics.Recorder // optional
	Logger     *log.Logger
	Options    WatchOptions
}

// Reconciler owns the tracked playlist registry and keeps it in step with the playlist service.
type Reconciler struct {
	source     services.PlaylistSource
	auth       oauth2.TokenSource
	dispatcher *Dispatcher
	store      RegistryStore
	runs       RunRecorder
	metrics    *metrics.Recorder
	logger     *log.Logger
	opts       WatchOptions

	state    State
	registry models.Registry
	pending  []string // configured names to resolve into a loaded registry
}

// checkResult is the outcome of fetching and diffing one playlist.
type checkResult struct {
	name     string
	snapshot *models.PlaylistSnapshot
	report   ChangeReport
	err      error
}

// NewReconciler validates opts and creates a Reconciler in the [Uninitialized] state.
func NewReconciler(o ReconcilerOpts) (*Reconciler, error) {
	opts := o.Options
	opts.Playlists = dedupe(opts.Playlists)

	switch {
	case o.Source == nil:
		return nil, fmt.Errorf("%w: playlist source", shared.ErrMissingArgument)
	case o.Store == nil:
		return nil, fmt.Errorf("%w: registry store", shared.ErrMissingArgument)
	case o.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher", shared.ErrMissingArgument)
	case o.Options.Account == "":
		return nil, fmt.Errorf("%w: account to scan", shared.ErrMissingArgument)
	case len(opts.Playlists) == 0:
		return nil, fmt.Errorf("%w: at least one playlist name", shared.ErrMissingArgument)
	}

	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Match == nil {
		opts.Match = ExactMatch
	}

	logger := o.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Reconciler{
		source:     o.Source,
		auth:       o.Auth,
		dispatcher: o.Dispatcher,
		store:      o.Store,
		runs:       o.Runs,
		metrics:    o.Metrics,
		logger:     logger,
		opts:       opts,
		state:      Uninitialized,
	}, nil
}

// State returns the current state.
func (r *Reconciler) State() State {
	return r.state
}

// Registry returns a copy of the registry, or nil before one was loaded or built.
func (r *Reconciler) Registry() models.Registry {
	if r.registry == nil {
		return nil
	}
	return r.registry.Clone()
}

// IsFatal reports whether err must stop the watch.
func IsFatal(err error) bool {
	return errors.Is(err, shared.ErrAuthUnavailable)
}

// Run repeats [Reconciler.Cycle] every interval until ctx is done or a fatal error occurs.
//
// Cycle-scoped errors are logged and retried on the next cycle. Cancellation returns nil.
func (r *Reconciler) Run(ctx context.Context, progress chan<- ProgressUpdate) error {
	for {
		if _, err := r.Cycle(ctx, progress); err != nil {
			if IsFatal(err) {
				return err
			}
			if ctx.Err() != nil {
				r.state = Stopped
				return nil
			}
			r.logger.Warn("cycle failed; retrying after interval", "interval", r.opts.Interval, "error", err)
		}

		r.sendProgress(progress, sleepingUpdate(r.opts.Interval))
		timer := time.NewTimer(r.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.state = Stopped
			return nil
		case <-timer.C:
		}
	}
}

// Cycle runs one pass: initialization while no registry exists, reconciliation afterwards.
//
// The returned run summary is always non-nil.
func (r *Reconciler) Cycle(ctx context.Context, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	run := &models.SyncRun{ID: shared.GenerateID(), StartedAt: time.Now().UTC()}
	logger := shared.WithLogger(r.logger, "cycle", run.ID)

	err := r.cycle(ctx, progress, run, logger)
	if IsFatal(err) {
		r.state = Stopped
	}

	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
	}
	r.metrics.Cycle(run.Phase, err, run.FinishedAt)
	r.record(ctx, run, logger)

	logger.Info("cycle finished",
		"phase", run.Phase, "checked", run.Checked, "changed", run.Changed,
		"notified", run.Notified, "failed", run.Failed, "took", run.Duration().Round(time.Millisecond))
	return run, err
}

func (r *Reconciler) cycle(ctx context.Context, progress chan<- ProgressUpdate, run *models.SyncRun, logger *log.Logger) error {
	if r.state == Stopped {
		return fmt.Errorf("%w: watcher stopped", shared.ErrAuthUnavailable)
	}

	if r.auth != nil {
		if _, err := r.auth.Token(); err != nil {
			if errors.Is(err, shared.ErrAuthUnavailable) {
				return err
			}
			return fmt.Errorf("%w: %v", shared.ErrAuthUnavailable, err)
		}
	}

	if r.registry == nil {
		reg, found, err := r.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("%w: load registry: %v", shared.ErrPersistState, err)
		}
		if found {
			r.adopt(reg, logger)
		}
	}

	if r.state != SteadyState {
		run.Phase = phaseInitialize
		return r.initialize(ctx, progress, run, logger)
	}

	run.Phase = phaseReconcile
	fresh, err := r.resolvePending(ctx, progress, run, logger)
	if err != nil && IsFatal(err) {
		return err
	}

	names := make([]string, 0, len(r.registry))
	for _, name := range r.registry.Names() {
		if !fresh[name] {
			names = append(names, name)
		}
	}
	return r.reconcile(ctx, progress, run, logger, names)
}

// adopt installs a persisted registry, dropping playlists that are no longer configured.
// Configured names missing from it are resolved on the next cycle.
func (r *Reconciler) adopt(reg models.Registry, logger *log.Logger) {
	wanted := make(map[string]bool, len(r.opts.Playlists))
	for _, name := range r.opts.Playlists {
		wanted[name] = true
	}
	for _, name := range reg.Names() {
		if !wanted[name] {
			delete(reg, name)
			logger.Info("playlist no longer configured; dropped from registry", "playlist", name)
		}
	}

	r.registry = reg
	r.state = SteadyState
	r.pending = reg.Missing(r.opts.Playlists)
	if len(r.pending) > 0 {
		logger.Info("configured playlists not in saved registry; resolving", "playlists", r.pending)
	}
}

// resolvePending snapshots configured names missing from the registry and merges them in.
//
// Failures are counted and the names stay pending for the next cycle. The returned set holds the names added.
func (r *Reconciler) resolvePending(ctx context.Context, progress chan<- ProgressUpdate, run *models.SyncRun, logger *log.Logger) (map[string]bool, error) {
	if len(r.pending) == 0 {
		return nil, nil
	}

	resolved, err := r.resolve(ctx, progress, run, r.pending, logger)
	if err != nil {
		run.Failed++
		logger.Warn("failed to resolve newly configured playlists; retrying next cycle", "playlists", r.pending, "error", err)
		return nil, err
	}

	fresh := make(map[string]bool, len(resolved))
	for name, snap := range resolved {
		r.registry[name] = snap
		fresh[name] = true
	}
	r.pending = nil
	return fresh, nil
}

// initialize builds the registry from scratch, then persists it.
func (r *Reconciler) initialize(ctx context.Context, progress chan<- ProgressUpdate, run *models.SyncRun, logger *log.Logger) error {
	r.state = Initializing
	r.sendProgress(progress, initializeUpdate(r.opts.Account, len(r.opts.Playlists)))

	registry, err := r.resolve(ctx, progress, run, r.opts.Playlists, logger)
	if err != nil {
		r.state = Uninitialized
		return err
	}

	if err := r.store.Save(context.WithoutCancel(ctx), registry); err != nil {
		r.state = Uninitialized
		return fmt.Errorf("%w: %v", shared.ErrPersistState, err)
	}

	r.registry = registry
	r.pending = nil
	r.state = SteadyState
	r.metrics.Tracked(len(registry))
	r.sendProgress(progress, persistedUpdate(len(registry)))
	logger.Info("registry initialized", "tracked", len(registry), "configured", len(r.opts.Playlists))
	return nil
}

// resolve scans the account's playlists until every name is found or the listing ends,
// then snapshots each playlist found. Names never found are left out.
func (r *Reconciler) resolve(ctx context.Context, progress chan<- ProgressUpdate, run *models.SyncRun, names []string, logger *log.Logger) (models.Registry, error) {
	total := len(names)
	wanted := make(map[string]bool, total)
	for _, name := range names {
		wanted[name] = true
	}

	found := make(map[string]services.PlaylistRef, total)
	cursor := ""
	for {
		page, err := r.source.UserPlaylists(ctx, r.opts.Account, cursor)
		if err != nil {
			return nil, fmt.Errorf("list playlists of %s: %w", r.opts.Account, err)
		}

		for _, p := range page.Playlists {
			if _, seen := found[p.Name]; wanted[p.Name] && !seen {
				found[p.Name] = p.PlaylistRef
			}
		}
		logger.Debug("scanned playlist page", "cursor", cursor, "size", len(page.Playlists), "resolved", len(found))

		if len(found) == total || page.Next == "" {
			break
		}
		cursor = page.Next
	}

	registry := make(models.Registry, len(found))
	for i, name := range names {
		ref, ok := found[name]
		if !ok {
			logger.Warn("playlist not found; it will not be tracked", "playlist", name, "account", r.opts.Account)
			continue
		}

		snap, err := FetchSnapshot(ctx, r.source, name, ref)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		registry[name] = snap
		run.Checked++
		r.sendProgress(progress, resolvedUpdate(i+1, total, name, snap.Tracks.Len()))
	}
	return registry, nil
}

// reconcile checks the named playlists, notifies about foreign adds and persists the whole registry.
//
// Fetch failures keep the stored snapshot, as do sends cut short by cancellation.
// An auth failure is returned only after the registry is saved.
func (r *Reconciler) reconcile(ctx context.Context, progress chan<- ProgressUpdate, run *models.SyncRun, logger *log.Logger, names []string) error {
	total := len(names)
	results := r.checkAll(ctx, progress, names)

	var fatal error
	for i, res := range results {
		step := i + 1
		plog := shared.WithLogger(logger, "playlist", res.name)
		run.Checked++

		if res.err != nil {
			run.Failed++
			r.metrics.Check(res.name, metrics.OutcomeFailed)
			r.sendProgress(progress, fetchFailedUpdate(step, total, res.name, res.err))
			plog.Warn("fetch failed; keeping stored snapshot", "error", res.err)
			if IsFatal(res.err) && fatal == nil {
				fatal = res.err
			}
			continue
		}

		r.metrics.Check(res.name, res.report.Kind.String())
		r.sendProgress(progress, outcomeUpdate(step, total, res.name, res.report))
		if res.report.Kind == Unchanged {
			continue
		}

		if res.report.Kind == Changed {
			run.Changed++
			plog.Info("playlist changed", "added", len(res.report.Added), "removed", len(res.report.Removed))
		}

		pc := PlaylistContext{Name: res.name, ShareURL: res.snapshot.ShareURL, Recipient: r.opts.Recipient}
		interrupted := false
		for _, n := range Decide(res.report, r.opts.Self, pc) {
			id, err := r.dispatcher.Dispatch(ctx, n)
			r.metrics.Notification(err)
			if err != nil {
				run.Failed++
				r.sendProgress(progress, notifyFailedUpdate(step, total, n, err))
				if ctx.Err() != nil {
					plog.Warn("shutting down before notifications were sent; keeping stored snapshot", "error", err)
					interrupted = true
					break
				}
				plog.Error("notification failed", "track", n.Track.Name, "added_by", n.Track.AddedBy, "error", err)
				continue
			}
			run.Notified++
			r.sendProgress(progress, notifiedUpdate(step, total, n))
			plog.Info("notification sent", "track", n.Track.Name, "added_by", n.Track.AddedBy, "message_id", id)
		}

		if !interrupted {
			r.registry[res.name] = res.snapshot
		}
	}

	if err := r.store.Save(context.WithoutCancel(ctx), r.registry); err != nil {
		if fatal != nil {
			return errors.Join(fatal, fmt.Errorf("%w: %v", shared.ErrPersistState, err))
		}
		return fmt.Errorf("%w: %v", shared.ErrPersistState, err)
	}
	r.metrics.Tracked(len(r.registry))
	r.sendProgress(progress, persistedUpdate(len(r.registry)))
	return fatal
}

// checkAll fetches and diffs every named playlist, in order when concurrency is 1 and through a bounded
// pool otherwise. Results are in the order of names.
func (r *Reconciler) checkAll(ctx context.Context, progress chan<- ProgressUpdate, names []string) []checkResult {
	results := make([]checkResult, len(names))
	total := len(names)

	if r.opts.Concurrency <= 1 {
		for i, name := range names {
			r.sendProgress(progress, checkUpdate(i+1, total, name))
			results[i] = r.check(ctx, name, r.registry[name])
		}
		return results
	}

	sem := make(chan struct{}, r.opts.Concurrency)
	var wg sync.WaitGroup
	for i, name := range names {
		stored := r.registry[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r.sendProgress(progress, checkUpdate(i+1, total, name))
			results[i] = r.check(ctx, name, stored)
		}()
	}
	wg.Wait()
	return results
}

// check fetches the current state of one playlist and diffs it against stored.
//
// When the version marker has not moved the remaining pages are not fetched.
func (r *Reconciler) check(ctx context.Context, name string, stored *models.PlaylistSnapshot) checkResult {
	res := checkResult{name: name}

	detail, err := r.source.Playlist(ctx, services.PlaylistRef{ID: stored.PlaylistID, OwnerID: stored.OwnerID})
	if err != nil {
		res.err = err
		return res
	}

	if detail.VersionMarker == stored.VersionMarker {
		res.snapshot = stored
		res.report = ChangeReport{Kind: Unchanged}
		return res
	}

	snap, err := completeSnapshot(ctx, r.source, name, detail)
	if err != nil {
		res.err = err
		return res
	}

	res.snapshot = snap
	res.report = DiffWith(stored, snap, r.opts.Match)
	return res
}

func (r *Reconciler) record(ctx context.Context, run *models.SyncRun, logger *log.Logger) {
	if r.runs == nil {
		return
	}
	if err := r.runs.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (r *Reconciler) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
