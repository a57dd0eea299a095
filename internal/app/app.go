// Package app wires the client together once at startup. Everything that used to be a
// module-level singleton hangs off App and is torn down by Close.
package app

import (
	"context"

	"github.com/labstack/gommon/log"

	"github.com/lachlan2k/vitrine/internal/accesscontrol"
	"github.com/lachlan2k/vitrine/internal/api"
	"github.com/lachlan2k/vitrine/internal/cart"
	"github.com/lachlan2k/vitrine/internal/config"
	"github.com/lachlan2k/vitrine/internal/session"
	"github.com/lachlan2k/vitrine/internal/storage"
)

type App struct {
	Conf    *config.Config
	Logger  *log.Logger
	Storage storage.Backend
	API     *api.Client
	Session *session.Store
	Auth    *session.Auth
	Cart    *cart.Store
	Routes  *accesscontrol.Routes
}

func New(ctx context.Context, conf *config.Config, logger *log.Logger) (*App, error) {
	backend, err := storage.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	return NewWithStorage(conf, logger, backend, api.New(conf)), nil
}

// NewWithStorage builds the app around a storage backend and API client the caller owns up to this point.
func NewWithStorage(conf *config.Config, logger *log.Logger, backend storage.Backend, client *api.Client) *App {
	sessionStore := session.NewStore(backend, client, logger)

	return &App{
		Conf:    conf,
		Logger:  logger,
		Storage: backend,
		API:     client,
		Session: sessionStore,
		Auth:    session.NewAuth(sessionStore, client, logger),
		Cart:    cart.New(backend, logger, conf.Cart.PerUser),
		Routes:  accesscontrol.RoutesFromConfig(conf),
	}
}

// Init loads the cart and restores the session, blocking until validation is done.
func (a *App) Init(ctx context.Context) session.Snapshot {
	a.Cart.Load(ctx)
	return a.Restore(ctx)
}

// Restore resolves the stored session and switches to that user's cart.
func (a *App) Restore(ctx context.Context) session.Snapshot {
	snap := a.Auth.Restore(ctx)
	if snap.User != nil {
		a.Cart.Bind(ctx, snap.User.ID)
	}

	a.Logger.Debugf("Session restored: %s", snap.State)
	return snap
}

func (a *App) SignIn(ctx context.Context, email, senha string) (*session.User, error) {
	user, err := a.Auth.SignIn(ctx, email, senha)
	if err != nil {
		return nil, err
	}

	a.Cart.Bind(ctx, user.ID)
	a.Logger.Infof("%s logged in as %s", user.Email, user.Role)
	return user, nil
}

// Logout ends the session. A device-wide cart goes with it; a per-user cart stays stored
// for that user's next login.
func (a *App) Logout(ctx context.Context) error {
	err := a.Auth.Logout(ctx)

	if a.Conf.Cart.PerUser {
		a.Cart.Bind(ctx, "")
	} else if cerr := a.Cart.Clear(ctx); cerr != nil {
		a.Logger.Warnf("Couldn't clear cart on logout: %v", cerr)
	}

	return err
}

func (a *App) Checkout(ctx context.Context) (*cart.Receipt, error) {
	return a.Cart.Checkout(ctx, a.API)
}

func (a *App) Close() error {
	a.Auth.Close()
	return a.Storage.Close()
}

func NewLogger(level string) *log.Logger {
	logger := log.New("vitrine")

	switch level {
	case "debug":
		logger.SetLevel(log.DEBUG)
	case "warn":
		logger.SetLevel(log.WARN)
	case "error":
		logger.SetLevel(log.ERROR)
	case "off":
		logger.SetLevel(log.OFF)
	default:
		logger.SetLevel(log.INFO)
	}

	return logger
}
