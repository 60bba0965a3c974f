package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClientConfig es la configuración de cmd/devlog.
type ClientConfig struct {
	Region    string `yaml:"region"`
	ProjectID string `yaml:"project_id"`
	// BrokerURL vacío => https://{region}-{project}.cloudfunctions.net
	BrokerURL string `yaml:"broker_url"`
	APIKey    string `yaml:"api_key"` // Firebase web API key
	StateDir  string `yaml:"state_dir"`
	LogLevel  string `yaml:"log_level"`

	// Host:puerto usado por el monitor de conectividad.
	CheckAddr string `yaml:"check_addr"`

	Google struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"google"`

	GitHub struct {
		ClientID string `yaml:"client_id"`
	} `yaml:"github"`

	Apple struct {
		ServicesID string `yaml:"services_id"`
	} `yaml:"apple"`
}

// LoadClient lee el YAML opcional del cliente y aplica env + defaults.
func LoadClient(path string) (*ClientConfig, error) {
	var c ClientConfig
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, err
			}
		}
	}

	if v, ok := getEnvStr("DEVLOG_REGION"); ok {
		c.Region = v
	}
	if v, ok := getEnvStr("DEVLOG_PROJECT_ID"); ok {
		c.ProjectID = v
	}
	if v, ok := getEnvStr("DEVLOG_BROKER_URL"); ok {
		c.BrokerURL = v
	}
	if v, ok := getEnvStr("FIREBASE_API_KEY"); ok {
		c.APIKey = v
	}
	if v, ok := getEnvStr("DEVLOG_STATE_DIR"); ok {
		c.StateDir = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := getEnvStr("DEVLOG_CHECK_ADDR"); ok {
		c.CheckAddr = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("APPLE_SERVICES_ID"); ok {
		c.Apple.ServicesID = v
	}

	if c.Region == "" {
		c.Region = "us-central1"
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.CheckAddr == "" {
		c.CheckAddr = "firebase.googleapis.com:443"
	}
	if c.StateDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.StateDir = filepath.Join(dir, "devlog")
		} else {
			c.StateDir = ".devlog"
		}
	}
	if c.BrokerURL == "" && c.ProjectID != "" {
		c.BrokerURL = fmt.Sprintf("https://%s-%s.cloudfunctions.net", c.Region, c.ProjectID)
	}
	c.BrokerURL = strings.TrimRight(c.BrokerURL, "/")

	if c.BrokerURL == "" {
		return nil, fmt.Errorf("config: broker url or project id is required")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("config: firebase api key is required")
	}
	return &c, nil
}
