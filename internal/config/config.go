package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración del broker (cmd/broker).
type Config struct {
	App struct {
		// dev | staging | prod
		Env       string `yaml:"app_env"`
		LogLevel  string `yaml:"log_level"`
		Region    string `yaml:"region"`
		ProjectID string `yaml:"project_id"`
	} `yaml:"app"`

	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		// Con true un request sin X-Devlog-Region también se rechaza.
		EnforceRegion bool `yaml:"enforce_region"`
	} `yaml:"server"`

	Storage struct {
		// firestore | postgres | memory
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	Apple struct {
		TeamID   string `yaml:"team_id"`
		ClientID string `yaml:"client_id"`
		KeyID    string `yaml:"key_id"`
		// PEM inline o ruta al .p8 (PrivateKeyPath gana si ambos están).
		PrivateKey     string `yaml:"private_key"`
		PrivateKeyPath string `yaml:"private_key_path"`
		TokenURL       string `yaml:"token_url"`
		RevokeURL      string `yaml:"revoke_url"`
	} `yaml:"apple"`

	GitHub struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURL  string `yaml:"redirect_url"`
		// Overrides para GitHub Enterprise / tests.
		AuthURL  string `yaml:"auth_url"`
		TokenURL string `yaml:"token_url"`
		APIURL   string `yaml:"api_url"`
	} `yaml:"github"`

	Firebase struct {
		ProjectID       string `yaml:"project_id"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`

	Security struct {
		// base64(32 bytes) para sellar tokens de proveedor en reposo.
		TokenSealingKey string `yaml:"token_sealing_key"`
	} `yaml:"security"`

	Locks struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"locks"`
}

// Load lee el YAML (si path no está vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if c.Apple.PrivateKeyPath != "" && !filepath.IsAbs(c.Apple.PrivateKeyPath) && path != "" {
		c.Apple.PrivateKeyPath = filepath.Clean(filepath.Join(filepath.Dir(path), c.Apple.PrivateKeyPath))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Region == "" {
		c.App.Region = "us-central1"
	}
	if c.Firebase.ProjectID == "" {
		c.Firebase.ProjectID = c.App.ProjectID
	}
	if c.App.ProjectID == "" {
		c.App.ProjectID = c.Firebase.ProjectID
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "firestore"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "devlog"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 30
	}
	if c.Apple.TokenURL == "" {
		c.Apple.TokenURL = "https://appleid.apple.com/auth/token"
	}
	if c.Apple.RevokeURL == "" {
		c.Apple.RevokeURL = "https://appleid.apple.com/auth/revoke"
	}
	if c.Locks.TTL == 0 {
		c.Locks.TTL = 30 * time.Second
	}
}

// AppleConfigured indica si hay material suficiente para firmar el client secret.
func (c *Config) AppleConfigured() bool {
	return c.Apple.TeamID != "" && c.Apple.ClientID != "" && c.Apple.KeyID != "" &&
		(c.Apple.PrivateKey != "" || c.Apple.PrivateKeyPath != "")
}

// ApplePrivateKeyPEM devuelve el PEM de la clave de Apple, leyendo el archivo si corresponde.
func (c *Config) ApplePrivateKeyPEM() ([]byte, error) {
	if p := strings.TrimSpace(c.Apple.PrivateKeyPath); p != "" {
		return os.ReadFile(p)
	}
	if c.Apple.PrivateKey == "" {
		return nil, errors.New("apple private key not configured")
	}
	// En env suele venir con \n escapados.
	return []byte(strings.ReplaceAll(c.Apple.PrivateKey, `\n`, "\n")), nil
}

// RateWindow devuelve la ventana ya parseada (validada en Load).
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Window)
	return d
}

// MemoryTTL devuelve el TTL default del cache en memoria.
func (c *Config) MemoryTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("DEVLOG_REGION"); ok {
		c.App.Region = v
	}
	if v, ok := getEnvStr("DEVLOG_PROJECT_ID"); ok {
		c.App.ProjectID = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_READ_TIMEOUT"); ok {
		c.Server.ReadTimeout = v
	}
	if v, ok := getEnvDur("SERVER_WRITE_TIMEOUT"); ok {
		c.Server.WriteTimeout = v
	}
	if v, ok := getEnvBool("SERVER_ENFORCE_REGION"); ok {
		c.Server.EnforceRegion = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// APPLE
	if v, ok := getEnvStr("APPLE_TEAM_ID"); ok {
		c.Apple.TeamID = v
	}
	if v, ok := getEnvStr("APPLE_CLIENT_ID"); ok {
		c.Apple.ClientID = v
	}
	if v, ok := getEnvStr("APPLE_KEY_ID"); ok {
		c.Apple.KeyID = v
	}
	if v, ok := getEnvStr("APPLE_PRIVATE_KEY"); ok {
		c.Apple.PrivateKey = v
	}
	if v, ok := getEnvStr("APPLE_PRIVATE_KEY_PATH"); ok {
		c.Apple.PrivateKeyPath = v
	}

	// GITHUB
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.GitHub.ClientSecret = v
	}
	if v, ok := getEnvStr("GITHUB_REDIRECT_URL"); ok {
		c.GitHub.RedirectURL = v
	}

	// FIREBASE
	if v, ok := getEnvStr("FIREBASE_PROJECT_ID"); ok {
		c.Firebase.ProjectID = v
	}
	if v, ok := getEnvStr("GOOGLE_APPLICATION_CREDENTIALS"); ok {
		c.Firebase.CredentialsFile = v
	}

	// SECURITY
	if v, ok := getEnvStr("TOKEN_SEALING_KEY"); ok {
		c.Security.TokenSealingKey = v
	}

	// LOCKS
	if v, ok := getEnvDur("LOCK_TTL"); ok {
		c.Locks.TTL = v
	}
}

// Validate chequea valores críticos. Apple/GitHub incompletos no son error:
// las funciones afectadas responden INTERNAL en runtime.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "firestore", "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("config: storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("config: cache.redis.addr is required for redis")
		}
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	if _, err := time.ParseDuration(c.Rate.Window); err != nil {
		return fmt.Errorf("config: rate.window: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
		return fmt.Errorf("config: cache.memory.default_ttl: %w", err)
	}
	if c.Storage.Driver == "firestore" && c.Firebase.ProjectID == "" {
		return errors.New("config: firebase.project_id is required for firestore")
	}
	if strings.EqualFold(c.App.Env, "prod") && c.Security.TokenSealingKey == "" {
		return errors.New("config: security.token_sealing_key is required in prod")
	}
	return nil
}
