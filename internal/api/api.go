// Package api talks to the storefront REST backend over one shared HTTP client. The
// client's Authorization header follows whatever session token was last stored.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/lachlan2k/vitrine/internal/cart"
	"github.com/lachlan2k/vitrine/internal/config"
)

// FlexibleID is an id minted by the backend. Depending on the endpoint it arrives as a
// JSON number or a string; both decode to the same text.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or a string: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

type LoginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	Tipo  string     `json:"tipo"`
	ID    FlexibleID `json:"id"`
	Nome  string     `json:"nome"`
}

type SessionStatus struct {
	Logado bool       `json:"logado"`
	ID     FlexibleID `json:"id,omitempty"`
	Nome   string     `json:"nome,omitempty"`
	Tipo   string     `json:"tipo,omitempty"`
}

type Client struct {
	baseURL     string
	loginPath   string
	sessionPath string
	ordersPath  string
	timeout     time.Duration
	base        http.RoundTripper

	mu     sync.RWMutex
	bearer string
	http   *http.Client
}

func New(conf *config.Config) *Client {
	return NewWithTransport(conf, http.DefaultTransport)
}

func NewWithTransport(conf *config.Config, base http.RoundTripper) *Client {
	c := &Client{
		baseURL:     conf.Backend.URL,
		loginPath:   conf.Backend.LoginPath,
		sessionPath: conf.Backend.SessionPath,
		ordersPath:  conf.Backend.OrdersPath,
		timeout:     time.Duration(conf.Backend.Timeout) * time.Second,
		base:        base,
	}
	c.http = c.plainClient()
	return c
}

func (c *Client) plainClient() *http.Client {
	return &http.Client{Transport: c.base, Timeout: c.timeout}
}

// SetBearer makes every later request carry "Authorization: Bearer <token>".
func (c *Client) SetBearer(token string) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.plainClient())
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	authed.Timeout = c.timeout

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearer = token
	c.http = authed
}

func (c *Client) ClearBearer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearer = ""
	c.http = c.plainClient()
}

// Bearer returns the token requests are currently sent with, if any.
func (c *Client) Bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

func (c *Client) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http
}

func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buff, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("couldn't marshal request body: %w", err)
		}
		reader = bytes.NewReader(buff)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	return c.client().Do(req)
}

// Login exchanges credentials for a session token. Every failure comes back as *LoginRejected.
func (c *Client) Login(ctx context.Context, email, senha string) (*LoginResponse, error) {
	res, err := c.do(ctx, http.MethodPost, c.loginPath, LoginRequest{Email: email, Senha: senha}, nil)
	if err != nil {
		return nil, &LoginRejected{Kind: KindConnectivity, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, rejectionFromStatus(res.StatusCode)
	}

	login := new(LoginResponse)
	if err := json.NewDecoder(res.Body).Decode(login); err != nil {
		return nil, &LoginRejected{Kind: KindContract, Status: res.StatusCode, Err: err}
	}

	if login.Token == "" || login.Tipo == "" {
		return nil, &LoginRejected{Kind: KindContract, Status: res.StatusCode, Err: ErrMissingLoginFields}
	}

	return login, nil
}

// CheckSession asks the backend whether the current bearer token is still a live session.
func (c *Client) CheckSession(ctx context.Context) (*SessionStatus, error) {
	res, err := c.do(ctx, http.MethodGet, c.sessionPath, nil, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Status: res.StatusCode}
	}

	status := new(SessionStatus)
	if err := json.NewDecoder(res.Body).Decode(status); err != nil {
		return nil, fmt.Errorf("couldn't decode session status: %w", err)
	}

	return status, nil
}

type Receipt struct {
	ID     FlexibleID `json:"id"`
	Status string     `json:"status,omitempty"`
}

type orderItem struct {
	ProdutoID  string  `json:"produtoId"`
	Quantidade int     `json:"quantidade"`
	Preco      float64 `json:"preco"`
}

type orderRequest struct {
	Itens []orderItem `json:"itens"`
	Total float64     `json:"total"`
}

// PlaceOrder submits the cart snapshot. The idempotency key lets the backend drop retries.
func (c *Client) PlaceOrder(ctx context.Context, order cart.Order) (*cart.Receipt, error) {
	body := orderRequest{Total: order.Total, Itens: make([]orderItem, 0, len(order.Items))}
	for _, it := range order.Items {
		body.Itens = append(body.Itens, orderItem{
			ProdutoID:  it.ProductID,
			Quantidade: it.Quantity,
			Preco:      it.UnitPrice,
		})
	}

	header := http.Header{}
	header.Set("Idempotency-Key", order.IdempotencyKey)

	res, err := c.do(ctx, http.MethodPost, c.ordersPath, body, header)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Status: res.StatusCode}
	}

	receipt := new(Receipt)
	if err := json.NewDecoder(res.Body).Decode(receipt); err != nil {
		return nil, fmt.Errorf("couldn't decode order receipt: %w", err)
	}

	return &cart.Receipt{OrderID: string(receipt.ID), Status: receipt.Status}, nil
}
