package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when the config file exists but is not a JSON
// object. Load still returns a usable default Config alongside it.
var ErrMalformed = errors.New("config: malformed config file")

const DefaultFile = "config.json"

// Config is loaded once at process start and then only read.
type Config struct {
	CapitalComAPIKey    string
	CapitalComAPISecret string
	AlpacaAPIKey        string
	AlpacaAPISecret     string

	// Extra holds file keys not known above, for future broker integrations.
	Extra map[string]string

	RequestTimeout time.Duration
	MinDelay       time.Duration
	MaxDelay       time.Duration
	RateLimit      float64

	DataDir   string
	IndexPath string
	LogLevel  string
	Trace     bool

	Port        string
	AdminAPIKey string
}

func Default() *Config {
	return &Config{
		Extra:          map[string]string{},
		RequestTimeout: 10 * time.Second,
		MinDelay:       1 * time.Second,
		MaxDelay:       3 * time.Second,
		RateLimit:      2,
		DataDir:        ".",
		LogLevel:       "info",
		Port:           "8000",
	}
}

func Get(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetBool(key, defaultVal string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		v = defaultVal
	}
	return v == "1" || v == "true" || v == "yes"
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := Get(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	v := Get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Path resolves the config file: FINSCAN_CONFIG when set, else config.json.
func Path() string {
	if p := Get("FINSCAN_CONFIG"); p != "" {
		return p
	}
	return DefaultFile
}

// Load reads .env, then the optional JSON file at path, then environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	godotenv.Load(".env")

	cfg := Default()
	var fileErr error
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			fileErr = fmt.Errorf("read %s: %w", path, err)
		default:
			fileErr = cfg.applyFile(data)
		}
	}
	cfg.applyEnv()
	return cfg, fileErr
}

func (c *Config) applyFile(data []byte) error {
	if !gjson.ValidBytes(data) {
		return ErrMalformed
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return ErrMalformed
	}
	root.ForEach(func(k, v gjson.Result) bool {
		val := strings.TrimSpace(v.String())
		switch k.String() {
		case "capital_com_api_key":
			c.CapitalComAPIKey = val
		case "capital_com_api_secret":
			c.CapitalComAPISecret = val
		case "alpaca_api_key":
			c.AlpacaAPIKey = val
		case "alpaca_api_secret":
			c.AlpacaAPISecret = val
		default:
			c.Extra[k.String()] = val
		}
		return true
	})
	return nil
}

func (c *Config) applyEnv() {
	if v := Get("CAPITAL_COM_API_KEY"); v != "" {
		c.CapitalComAPIKey = v
	}
	if v := Get("CAPITAL_COM_API_SECRET"); v != "" {
		c.CapitalComAPISecret = v
	}
	if v := Get("ALPACA_API_KEY"); v != "" {
		c.AlpacaAPIKey = v
	}
	if v := Get("ALPACA_SECRET_KEY"); v != "" {
		c.AlpacaAPISecret = v
	}
	// Zero would mean no timeout at all on outbound calls.
	if d := getDuration("FINSCAN_HTTP_TIMEOUT", c.RequestTimeout); d > 0 {
		c.RequestTimeout = d
	}
	c.MinDelay = getDuration("FINSCAN_DELAY_MIN", c.MinDelay)
	c.MaxDelay = getDuration("FINSCAN_DELAY_MAX", c.MaxDelay)
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	c.RateLimit = getFloat("FINSCAN_RATE_LIMIT", c.RateLimit)
	if v := Get("FINSCAN_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := Get("FINSCAN_INDEX_DB"); v != "" {
		c.IndexPath = v
	}
	if v := Get("FINSCAN_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	c.Trace = GetBool("FINSCAN_TRACE", strconv.FormatBool(c.Trace))
	if v := Get("PORT"); v != "" {
		c.Port = v
	}
	if v := Get("ADMIN_API_KEY"); v != "" {
		c.AdminAPIKey = v
	}
}

// HasCapitalCom reports whether the Capital.com broker is configured.
func (c *Config) HasCapitalCom() bool { return c.CapitalComAPIKey != "" }

// HasAlpaca needs both halves of the key pair.
func (c *Config) HasAlpaca() bool { return c.AlpacaAPIKey != "" && c.AlpacaAPISecret != "" }
