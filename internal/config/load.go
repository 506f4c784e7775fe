package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/phrazzld/functest/internal/ciutil"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration environment variable, e.g.
// FUNCTEST_SNAPSHOT_CACHE_DB.
const EnvPrefix = "FUNCTEST"

// DotEnvFiles are loaded, in order, before reading the environment. Values
// already present in the process environment are never overridden.
var DotEnvFiles = []string{".env.test.local", ".env.test", ".env"}

// Load reads configuration from dotenv files and environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the YAML file at path (if non-empty),
// dotenv files, and environment variables. Environment variables take
// precedence over file values.
func LoadFile(path string) (*Config, error) {
	if err := loadDotEnv(DotEnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Database URL also honours the conventional unprefixed names.
	if err := v.BindEnv(append([]string{"database.url"}, ciutil.DatabaseURLVars...)...); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Snapshot.CacheDir == "" {
		cfg.Snapshot.CacheDir = defaultCacheDir()
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.extensions.pgsql", []string{})
	v.SetDefault("snapshot.cache_db", false)
	v.SetDefault("snapshot.cache_dir", "")
	v.SetDefault("authentication.username", "")
	v.SetDefault("authentication.password", "")
	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.dir", filepath.Join(os.TempDir(), "functest", "content"))
	v.SetDefault("blob.s3_bucket", "")
	v.SetDefault("blob.s3_region", "")
	v.SetDefault("blob.s3_endpoint", "")
	v.SetDefault("blob.s3_use_path_style", false)
	v.SetDefault("blob.s3_access_key_id", "")
	v.SetDefault("blob.s3_secret_access_key", "")
	v.SetDefault("assets.manifest_file", "")
	v.SetDefault("assets.dir", "")
}

func defaultCacheDir() string {
	if dir, err := ciutil.DefaultCacheDir(nil); err == nil {
		return dir
	}
	return filepath.Join(os.TempDir(), "functest", "cache")
}

func loadDotEnv(files []string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}
