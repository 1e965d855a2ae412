package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Posts.PerPage)
	assert.Equal(t, 10*time.Minute, cfg.ResetTTL())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.RememberTTL())
	assert.Empty(t, cfg.Mail.Admins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MICROBLOG_AUTH_SECRETKEY", "s3cret")
	t.Setenv("MICROBLOG_POSTS_PERPAGE", "25")
	t.Setenv("MICROBLOG_MAIL_ADMINS", "a@example.com, b@example.com")
	t.Setenv("MICROBLOG_DATABASE_DRIVER", "postgres")
	t.Setenv("MICROBLOG_DATABASE_URL", "postgres://localhost/microblog")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.SecretKey)
	assert.Equal(t, 25, cfg.Posts.PerPage)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Mail.Admins)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = "x.db"
	cfg.Posts.PerPage = 3

	assert.EqualError(t, cfg.Validate(), "auth secret key is required")

	cfg.Server.Debug = true
	assert.NoError(t, cfg.Validate())

	cfg.Server.BaseURL = "microblog.example.com"
	assert.Error(t, cfg.Validate())
	cfg.Server.BaseURL = "https://microblog.example.com"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport MICROBLOG_TEST_A=\"one\"\nMICROBLOG_TEST_B=two\ninvalid\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("MICROBLOG_TEST_B", "preset")
	t.Setenv("MICROBLOG_TEST_A", "")
	require.NoError(t, os.Unsetenv("MICROBLOG_TEST_A"))

	loadDotEnv(path)
	t.Cleanup(func() { _ = os.Unsetenv("MICROBLOG_TEST_A") })

	assert.Equal(t, "one", os.Getenv("MICROBLOG_TEST_A"))
	assert.Equal(t, "preset", os.Getenv("MICROBLOG_TEST_B"))
}
