package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr  string
		Debug bool
		// BaseURL is the public origin used in links sent by email.
		BaseURL string
	}
	Database struct {
		Driver string
		Path   string
		URL    string
	}
	Auth struct {
		SecretKey         string
		SessionTTLMinutes int
		RememberTTLHours  int
		ResetTTLMinutes   int
	}
	Posts struct {
		PerPage int
	}
	Mail struct {
		Server        string
		Port          int
		Username      string
		Password      string
		UseTLS        bool
		Sender        string
		Admins        []string
		MaxConcurrent int
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
		File  string
	}
}

// SessionTTL is the lifetime of a regular login session.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// RememberTTL is the lifetime of a session created with "remember me".
func (c Config) RememberTTL() time.Duration {
	return time.Duration(c.Auth.RememberTTLHours) * time.Hour
}

func (c Config) ResetTTL() time.Duration {
	return time.Duration(c.Auth.ResetTTLMinutes) * time.Minute
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" && !c.Server.Debug {
		return errors.New("auth secret key is required")
	}
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.Database.URL) == "" {
			return errors.New("database url is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server base url %q must be an absolute http(s) url", c.Server.BaseURL)
		}
	}
	if c.Posts.PerPage <= 0 {
		return errors.New("posts per page must be positive")
	}
	return nil
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("MICROBLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.baseurl", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/app.db")
	v.SetDefault("database.url", "")
	v.SetDefault("auth.secretkey", "")
	v.SetDefault("auth.sessionttlminutes", 24*60)
	v.SetDefault("auth.rememberttlhours", 30*24)
	v.SetDefault("auth.resetttlminutes", 10)
	v.SetDefault("posts.perpage", 3)
	v.SetDefault("mail.server", "")
	v.SetDefault("mail.port", 25)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.usetls", false)
	v.SetDefault("mail.sender", "no-reply@microblog.local")
	v.SetDefault("mail.admins", []string{})
	v.SetDefault("mail.maxconcurrent", 2)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "uploads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// comma separated lists arrive from the environment as a single string
	cfg.Mail.Admins = splitList(cfg.Mail.Admins)

	return cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
