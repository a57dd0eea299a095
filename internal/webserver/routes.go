package webserver

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lachlan2k/vitrine/internal/accesscontrol"
	"github.com/lachlan2k/vitrine/internal/api"
	"github.com/lachlan2k/vitrine/internal/cart"
	"github.com/lachlan2k/vitrine/internal/session"
)

const snapshotKey = "session"

type AuthInfoRes struct {
	ID         string `json:"id"`
	Nome       string `json:"nome"`
	Email      string `json:"email"`
	Tipo       string `json:"tipo"`
	IsClient   bool   `json:"isCliente"`
	IsEmployee bool   `json:"isFuncionario"`
}

type viewRes struct {
	View     string        `json:"view"`
	User     *session.User `json:"usuario,omitempty"`
	Redirect string        `json:"redir,omitempty"`
}

type errorRes struct {
	Error string `json:"error"`
}

func authInfo(snap session.Snapshot) AuthInfoRes {
	u := snap.User
	return AuthInfoRes{
		ID:         u.ID,
		Nome:       u.Name,
		Email:      u.Email,
		Tipo:       u.Role,
		IsClient:   snap.IsClient(),
		IsEmployee: snap.IsEmployee(),
	}
}

func (w *Webserver) guard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		snap := w.app.Auth.Snapshot()

		switch w.app.Routes.Check(snap, path) {
		case accesscontrol.Loading:
			return c.JSON(http.StatusAccepted, viewRes{View: "carregando"})
		case accesscontrol.RedirectLogin:
			return c.Redirect(http.StatusFound, w.conf.AccessControl.LoginPath+"?redir="+url.QueryEscape(path))
		case accesscontrol.RedirectDenied:
			c.Logger().Infof("%s (%s) was denied %s", snap.User.ID, snap.Role(), path)
			return c.Redirect(http.StatusFound, w.conf.AccessControl.DeniedPath)
		}

		c.Set(snapshotKey, snap)
		return next(c)
	}
}

func (w *Webserver) view(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, ok := c.Get(snapshotKey).(session.Snapshot)
		if !ok {
			snap = w.app.Auth.Snapshot()
		}
		return c.JSON(http.StatusOK, viewRes{View: name, User: snap.User})
	}
}

func (w *Webserver) loginViewHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, viewRes{View: "login", Redirect: c.QueryParam("redir")})
}

type loginReq struct {
	Email string `json:"email" form:"email"`
	Senha string `json:"senha" form:"senha"`
}

// Only same-site paths, so the login form can't be used as an open redirect
func safeRedirect(redir string) bool {
	return strings.HasPrefix(redir, "/") && !strings.HasPrefix(redir, "//") && !strings.Contains(redir, "\\")
}

func (w *Webserver) loginRouteHandler(c echo.Context) error {
	logger := c.Echo().Logger

	var req loginReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Senha == "" {
		return c.JSON(http.StatusBadRequest, errorRes{Error: "Informe email e senha."})
	}

	user, err := w.app.SignIn(c.Request().Context(), req.Email, req.Senha)
	if err != nil {
		var rejected *api.LoginRejected
		if !errors.As(err, &rejected) {
			logger.Errorf("Couldn't log %s in: %v", req.Email, err)
			return c.JSON(http.StatusInternalServerError, errorRes{Error: "Não foi possível entrar."})
		}

		logger.Infof("Login for %s rejected: %v", req.Email, rejected)
		status, msg := loginRejectionMessage(rejected)
		return c.JSON(status, errorRes{Error: msg})
	}

	if redir := c.QueryParam("redir"); safeRedirect(redir) {
		return c.Redirect(http.StatusFound, redir)
	}

	return c.JSON(http.StatusOK, authInfo(session.Snapshot{State: session.StateLoggedIn, User: user}))
}

func loginRejectionMessage(rejected *api.LoginRejected) (int, string) {
	switch rejected.Kind {
	case api.KindUnauthorized:
		return http.StatusUnauthorized, "Email ou senha inválidos."
	case api.KindConnectivity:
		return http.StatusServiceUnavailable, "Não foi possível conectar ao servidor. Verifique sua conexão."
	case api.KindContract:
		return http.StatusBadGateway, "O servidor respondeu de forma inesperada."
	}
	return http.StatusBadGateway, "Erro no servidor. Tente novamente mais tarde."
}

func (w *Webserver) logoutRouteHandler(c echo.Context) error {
	if err := w.app.Logout(c.Request().Context()); err != nil {
		c.Echo().Logger.Warnf("Logout didn't clear storage cleanly: %v", err)
	}
	return c.String(http.StatusOK, "")
}

func (w *Webserver) authInfoRouteHandler(c echo.Context) error {
	snap := w.app.Auth.Snapshot()
	if snap.State != session.StateLoggedIn || snap.User == nil {
		return c.JSON(http.StatusForbidden, errorRes{Error: "Unauthorized"})
	}

	return c.JSON(http.StatusOK, authInfo(snap))
}

type cartRes struct {
	Items []cart.LineItem `json:"itens"`
	Total float64         `json:"total"`
	Count int             `json:"quantidade"`
}

func (w *Webserver) cartState() cartRes {
	return cartRes{
		Items: w.app.Cart.Items(),
		Total: w.app.Cart.Total(),
		Count: w.app.Cart.Count(),
	}
}

func (w *Webserver) cartRouteHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, w.cartState())
}

type addItemReq struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	PhotoRef  string  `json:"photoRef"`
	Quantity  *int    `json:"quantity"`
}

func (w *Webserver) addItemRouteHandler(c echo.Context) error {
	var req addItemReq
	if err := c.Bind(&req); err != nil || req.ProductID == "" || req.UnitPrice < 0 {
		return c.JSON(http.StatusBadRequest, errorRes{Error: "Produto inválido."})
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	err := w.app.Cart.Add(c.Request().Context(), cart.Product{
		ID:        req.ProductID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		PhotoRef:  req.PhotoRef,
	}, qty)

	return w.cartResult(c, err)
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

func (w *Webserver) setQuantityRouteHandler(c echo.Context) error {
	var req setQuantityReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorRes{Error: "Quantidade inválida."})
	}

	return w.cartResult(c, w.app.Cart.SetQuantity(c.Request().Context(), c.Param("id"), req.Quantity))
}

func (w *Webserver) removeItemRouteHandler(c echo.Context) error {
	return w.cartResult(c, w.app.Cart.Remove(c.Request().Context(), c.Param("id")))
}

func (w *Webserver) clearCartRouteHandler(c echo.Context) error {
	return w.cartResult(c, w.app.Cart.Clear(c.Request().Context()))
}

// The in-memory cart has already changed when persisting fails; report it and show the cart anyway
func (w *Webserver) cartResult(c echo.Context, err error) error {
	if err != nil {
		c.Echo().Logger.Errorf("Cart change wasn't persisted: %v", err)
	}
	return c.JSON(http.StatusOK, w.cartState())
}

func (w *Webserver) checkoutRouteHandler(c echo.Context) error {
	receipt, err := w.app.Checkout(c.Request().Context())
	if errors.Is(err, cart.ErrEmptyCart) {
		return c.JSON(http.StatusBadRequest, errorRes{Error: "Seu carrinho está vazio."})
	}
	if err != nil {
		c.Echo().Logger.Errorf("Checkout failed: %v", err)
		return c.JSON(http.StatusBadGateway, errorRes{Error: "Não foi possível finalizar o pedido."})
	}

	return c.JSON(http.StatusCreated, receipt)
}
