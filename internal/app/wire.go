package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"todosync/internal/canvas"
	"todosync/internal/config"
	"todosync/internal/credentials"
	"todosync/internal/due"
	"todosync/internal/reconcile"
	"todosync/internal/storage/sqlite"
	"todosync/internal/throttle"
	"todosync/internal/todoist"
)

// ErrMissingToken is returned when neither the config, the environment nor
// the keychain holds a required token.
var ErrMissingToken = errors.New("missing API token")

// NewGuard builds the throttle guard of one run from the config.
func NewGuard(cfg *config.Config, logger zerolog.Logger) *throttle.Guard {
	return throttle.New(throttle.Options{
		Threshold:  cfg.Throttle.Threshold,
		MinDelay:   cfg.Throttle.MinDelay,
		MaxDelay:   cfg.Throttle.MaxDelay,
		MaxCreated: cfg.Throttle.MaxCreated,
	}, logger)
}

// NewCanvas builds the Canvas client, resolving the token from the keychain
// when the config has none.
func NewCanvas(cfg *config.Config, pacer canvas.Pacer, logger zerolog.Logger) (*canvas.Client, error) {
	token, err := credentials.Resolve(credentials.AccountCanvas, cfg.Canvas.Token)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("canvas: %w, set canvas.token, TODOSYNC_CANVAS_TOKEN or run `todosync auth set canvas`", ErrMissingToken)
	}
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	return canvas.NewClient(cfg.Canvas.BaseURL, token, cfg.Canvas.PerPage, httpClient, pacer, logger.With().Str("component", "canvas").Logger()), nil
}

// Env holds the long-lived components of one command invocation.
type Env struct {
	Canvas  *canvas.Client
	Tracker Tracker
	Ledger  Ledger
	Guard   *throttle.Guard

	stores []*sqlite.Store
}

// Close releases the databases opened by Open.
func (e *Env) Close() error {
	var errs []error
	for _, s := range e.stores {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Open builds the Canvas client, the tracker backend and the run ledger
// described by cfg. The local tracker and the ledger share one database when
// they point at the same file.
func Open(cfg *config.Config, logger zerolog.Logger) (*Env, error) {
	env := &Env{Guard: NewGuard(cfg, logger)}

	c, err := NewCanvas(cfg, env.Guard, logger)
	if err != nil {
		return nil, err
	}
	env.Canvas = c

	opened := map[string]*sqlite.Store{}
	openStore := func(path string) (*sqlite.Store, error) {
		if s, ok := opened[path]; ok {
			return s, nil
		}
		s, err := sqlite.Open(path, logger)
		if err != nil {
			return nil, err
		}
		opened[path] = s
		env.stores = append(env.stores, s)
		return s, nil
	}

	switch cfg.Tracker.Backend {
	case config.BackendLocal:
		store, err := openStore(cfg.Tracker.DBPath)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		env.Tracker = store
	default:
		token, err := credentials.Resolve(credentials.AccountTracker, cfg.Tracker.Token)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, fmt.Errorf("tracker: %w, set tracker.token, TODOSYNC_TRACKER_TOKEN or run `todosync auth set tracker`", ErrMissingToken)
		}
		httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
		env.Tracker = todoist.NewClient(cfg.Tracker.BaseURL, token, httpClient, env.Guard, logger.With().Str("component", "todoist").Logger())
	}

	if cfg.History.Enabled {
		store, err := openStore(cfg.History.Path)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		env.Ledger = store
	}
	return env, nil
}

// NewSyncerFromConfig builds a syncer over env with the sync settings of cfg.
func NewSyncerFromConfig(cfg *config.Config, env *Env, dryRun bool, logger zerolog.Logger) (*Syncer, error) {
	norm, err := due.NewNormalizer(cfg.Sync.DisplayTimezone, cfg.Sync.AllDaySentinel)
	if err != nil {
		return nil, err
	}
	opts := Options{
		CourseIDs: cfg.Sync.Courses,
		DryRun:    dryRun,
		Engine: reconcile.Options{
			Policy: reconcile.Policy{
				SyncNullAssignments:      cfg.Sync.NullAssignments,
				SyncLockedAssignments:    cfg.Sync.LockedAssignments,
				SyncNoDueDateAssignments: cfg.Sync.NoDueDateAssignments,
			},
			Priority: cfg.Task.Priority,
			Labels:   cfg.Task.Labels,
		},
	}
	return NewSyncer(opts, env.Canvas, env.Tracker, env.Ledger, env.Guard, norm, logger), nil
}
