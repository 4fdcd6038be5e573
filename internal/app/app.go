// Package app wires configuration into the stores and controllers used by the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/kbchat/internal/auth"
	"github.com/raphaelgruber/kbchat/internal/chat"
	"github.com/raphaelgruber/kbchat/internal/client"
	"github.com/raphaelgruber/kbchat/internal/config"
	"github.com/raphaelgruber/kbchat/internal/conversation"
	"github.com/raphaelgruber/kbchat/internal/llm"
	"github.com/raphaelgruber/kbchat/internal/metrics"
	"github.com/raphaelgruber/kbchat/internal/session"
	"github.com/raphaelgruber/kbchat/internal/storage"
)

// App holds the process-wide state of one client session.
type App struct {
	Config       config.Config
	Client       *client.Client
	Session      *session.Store
	Conversation *conversation.Store
	Auth         *auth.Controller
	Chat         *chat.Submitter
	Metrics      *metrics.Collector

	storage storage.Storage
	logger  *slog.Logger
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	storage   storage.Storage
	completer chat.Completer
}

// WithStorage uses st instead of the configured backend. App.Close closes it.
func WithStorage(st storage.Storage) Option {
	return func(o *options) { o.storage = st }
}

// WithCompleter uses c instead of the configured completion mode.
func WithCompleter(c chat.Completer) Option {
	return func(o *options) { o.completer = c }
}

// New builds an App from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := metrics.NewCollector()
	clientOpts := []client.Option{client.WithMetrics(m), client.WithLogger(logger)}
	if cfg.ClientTimeout > 0 {
		clientOpts = append(clientOpts, client.WithTimeout(cfg.ClientTimeout))
	}
	api := client.New(cfg.APIURL, clientOpts...)

	st := o.storage
	if st == nil {
		var err error
		st, err = openStorage(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	completer := o.completer
	if completer == nil {
		var err error
		completer, err = newCompleter(ctx, cfg, api, m, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	sess := session.NewStore()
	conv := conversation.NewStore(ctx, st, cfg.DefaultFolder, logger)

	logger.Debug("app ready",
		"api_url", api.BaseURL(),
		"mode", cfg.CompletionMode,
		"storage", cfg.Storage,
		"folder", conv.SelectedFolder(),
	)

	return &App{
		Config:       cfg,
		Client:       api,
		Session:      sess,
		Conversation: conv,
		Auth:         auth.NewController(api, sess, logger),
		Chat:         chat.NewSubmitter(sess, conv, completer, cfg.HistoryWindow, logger),
		Metrics:      m,
		storage:      st,
		logger:       logger,
	}, nil
}

func openStorage(cfg config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageBadger:
		st, err := storage.OpenBadger(storage.BadgerConfig{Path: cfg.SessionDir, Logger: logger})
		if err != nil {
			// The folder preference is best-effort; keep it in memory for this run.
			logger.Warn("session storage unavailable, folder will not persist",
				"error", err, "path", cfg.SessionDir)
			return storage.NewMemory(), nil
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Storage)
	}
}

func newCompleter(ctx context.Context, cfg config.Config, api *client.Client, m *metrics.Collector, logger *slog.Logger) (chat.Completer, error) {
	switch cfg.CompletionMode {
	case config.ModeHTTP:
		return client.HTTPCompleter{Client: api}, nil
	case config.ModeStream:
		return client.StreamCompleter{Client: api}, nil
	case config.ModeDirect:
		model, err := llm.NewModel(cfg, m, logger)
		if err != nil {
			return nil, err
		}
		return model, nil
	case config.ModeBedrock:
		b, err := llm.NewBedrock(ctx, cfg, m, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported completion mode: %q", cfg.CompletionMode)
	}
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Close logs out and releases storage.
func (a *App) Close() error {
	a.Session.Clear()
	if err := a.storage.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
		return err
	}
	return nil
}
