package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Minio   MinioConfig   `yaml:"minio"`
	Extract ExtractConfig `yaml:"extract"`
	CRM     CRMConfig     `yaml:"crm"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Rules   RulesConfig   `yaml:"rules"`
	Users   []User        `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// ExtractConfig points at the OCR text-extraction task API used to turn
// uploaded PDFs into text before the rule engine runs.
type ExtractConfig struct {
	APIURL      string `yaml:"api_url"`
	APIToken    string `yaml:"api_token"`
	Languages   string `yaml:"languages"`
	CallbackURL string `yaml:"callback_url"`
	Seed        string `yaml:"seed"`
	PollSeconds int    `yaml:"poll_seconds"`
	MaxPolls    int    `yaml:"max_polls"`
}

// CRMConfig holds the PixelCRM endpoints and credentials used for prefill.
type CRMConfig struct {
	AuthBaseURL string `yaml:"auth_base_url"`
	AppBaseURL  string `yaml:"app_base_url"`
	Company     string `yaml:"company"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxAudits int `yaml:"max_audits"`
}

// RulesConfig locates the delegate rule file (required fields, required
// documents, HOMELIOR thresholds). It lives outside the service config so
// the rule set can be versioned and hot-reloaded on its own.
type RulesConfig struct {
	Path string `yaml:"path"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Tenant   string `yaml:"tenant"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Extract.Languages == "" {
		cfg.Extract.Languages = "fra+eng"
	}
	if cfg.Extract.PollSeconds == 0 {
		cfg.Extract.PollSeconds = 5
	}
	if cfg.Extract.MaxPolls == 0 {
		cfg.Extract.MaxPolls = 60
	}
	if cfg.Rules.Path == "" {
		cfg.Rules.Path = "rules.yaml"
	}
	if cfg.CRM.AuthBaseURL == "" {
		cfg.CRM.AuthBaseURL = "https://crm.pixel-crm.com"
	}
	if cfg.CRM.AppBaseURL == "" {
		cfg.CRM.AppBaseURL = "https://crm.pixel-crm.net"
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
