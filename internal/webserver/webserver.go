package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lachlan2k/vitrine/internal/app"
	"github.com/lachlan2k/vitrine/internal/config"
)

type Webserver struct {
	echo *echo.Echo
	app  *app.App
	conf *config.Config
}

func New(a *app.App) *Webserver {
	e := echo.New()
	e.HideBanner = true
	e.Logger = a.Logger

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	w := &Webserver{
		echo: e,
		app:  a,
		conf: a.Conf,
	}
	w.registerRoutes()

	return w
}

func (w *Webserver) Logger() echo.Logger {
	return w.echo.Logger
}

func (w *Webserver) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.echo.ServeHTTP(rw, r)
}

func (w *Webserver) registerRoutes() {
	e := w.echo

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	e.GET("/login", w.loginViewHandler)
	e.POST("/login", w.loginRouteHandler)
	e.POST("/logout", w.logoutRouteHandler)
	e.GET("/auth", w.authInfoRouteHandler)
	e.GET(w.conf.AccessControl.DeniedPath, w.view("acesso-negado"))

	for path, name := range map[string]string{
		"/":               "inicio",
		"/produtos":       "produtos",
		"/animais":        "animais",
		"/perfil":         "perfil",
		"/pedidos":        "pedidos",
		"/funcionarios":   "funcionarios",
		"/funcionarios/*": "funcionarios",
	} {
		e.GET(path, w.view(name), w.guard)
	}

	e.GET("/carrinho", w.cartRouteHandler)
	e.POST("/carrinho/itens", w.addItemRouteHandler)
	e.PATCH("/carrinho/itens/:id", w.setQuantityRouteHandler)
	e.DELETE("/carrinho/itens/:id", w.removeItemRouteHandler)
	e.DELETE("/carrinho", w.clearCartRouteHandler)
	e.POST("/checkout", w.checkoutRouteHandler, w.guard)
}

// Run serves until ctx is cancelled. The session is restored in the background, so requests
// that arrive before validation finishes get the loading placeholder.
func (w *Webserver) Run(ctx context.Context) error {
	w.app.Cart.Load(ctx)
	go w.app.Restore(ctx)

	errs := make(chan error, 1)
	go func() {
		errs <- w.echo.Start(fmt.Sprintf(":%d", w.conf.ListenPort))
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.echo.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
