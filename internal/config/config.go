package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/lachlan2k/vitrine/internal/token"
)

type Config struct {
	ListenPort int    `toml:"port"`
	BaseURL    string `toml:"base_url"`
	LogLevel   string `toml:"log_level"`

	Backend struct {
		URL string `toml:"url"`
		// Seconds. 0 leaves the HTTP client without a timeout
		Timeout int `toml:"timeout"`

		LoginPath   string `toml:"login_path"`
		SessionPath string `toml:"session_path"`
		OrdersPath  string `toml:"orders_path"`
	} `toml:"backend"`

	Storage struct {
		// One of "sqlite", "redis", "memory"
		Type string `toml:"type"`
		Path string `toml:"path"`

		Redis struct {
			Addr     string `toml:"addr"`
			Password string `toml:"password"`
			DB       int    `toml:"db"`
			Prefix   string `toml:"prefix"`
		} `toml:"redis"`
	} `toml:"storage"`

	Cart struct {
		// Keep one cart per logged in user instead of one per device
		PerUser bool `toml:"per_user"`
	} `toml:"cart"`

	AccessControl struct {
		LoginPath  string `toml:"login_path"`
		DeniedPath string `toml:"denied_path"`

		// path pattern => roles allowed to see it. Unlisted paths are public
		Routes map[string][]string `toml:"routes"`
	} `toml:"access_control"`
}

// TOML marshaller doesn't override fields that weren't set in the TOML, so we can apply defaults here
func (c *Config) setDefaults() {
	c.ListenPort = 8080
	c.LogLevel = "info"

	c.Backend.Timeout = 15
	c.Backend.LoginPath = "/login"
	c.Backend.SessionPath = "/logado"
	c.Backend.OrdersPath = "/pedidos"

	c.Storage.Type = "sqlite"
	c.Storage.Path = "vitrine.db"
	c.Storage.Redis.Addr = "localhost:6379"
	c.Storage.Redis.Prefix = "vitrine:"

	c.AccessControl.LoginPath = "/login"
	c.AccessControl.DeniedPath = "/acesso-negado"
	c.AccessControl.Routes = map[string][]string{
		"/perfil":         {token.RoleClient, token.RoleEmployee},
		"/pedidos":        {token.RoleClient},
		"/checkout":       {token.RoleClient},
		"/funcionarios":   {token.RoleEmployee},
		"/funcionarios/*": {token.RoleEmployee},
	}
}

func Default() *Config {
	conf := new(Config)
	conf.setDefaults()
	return conf
}

func Parse(data []byte) (*Config, error) {
	conf := Default()

	// A routes table in the file replaces the defaults rather than merging with them
	var routes struct {
		AccessControl struct {
			Routes map[string][]string `toml:"routes"`
		} `toml:"access_control"`
	}
	if err := toml.Unmarshal(data, &routes); err != nil {
		return nil, err
	}
	if routes.AccessControl.Routes != nil {
		conf.AccessControl.Routes = nil
	}

	if err := toml.Unmarshal(data, conf); err != nil {
		return nil, err
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("please supply backend.url")
	}
	c.Backend.URL = strings.TrimSuffix(c.Backend.URL, "/")

	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.ListenPort)
	}

	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage type is sqlite but storage.path is empty")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage type is redis but storage.redis.addr is empty")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage type supplied (%s), valid types are \"sqlite\", \"redis\" and \"memory\"", c.Storage.Type)
	}

	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout can't be negative")
	}

	for path, roles := range c.AccessControl.Routes {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("route %q must start with /", path)
		}
		for _, role := range roles {
			if !token.ValidRole(role) {
				return fmt.Errorf("route %q requires unknown role %q", path, role)
			}
		}
	}

	return nil
}

func LoadFromTomlFileAndValidate(filepath string) (*Config, error) {
	file, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	return Parse(file)
}
