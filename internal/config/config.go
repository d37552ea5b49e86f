package config

import (
	"os"
	"path/filepath"

	"github.com/KaramelBytes/datakit-cli/internal/utils"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Ambiguity policies for recursive file lookups.
const (
	AmbiguityPick = "pick"
	AmbiguityFail = "fail"
)

// DefaultKaggleAPIBase is the public dataset API endpoint.
const DefaultKaggleAPIBase = "https://www.kaggle.com/api/v1"

// Global configuration structure.
type Global struct {
	// Remote dataset API
	KaggleAPIBase   string `mapstructure:"kaggle_api_base" yaml:"kaggle_api_base"`
	KaggleConfigDir string `mapstructure:"kaggle_config_dir" yaml:"kaggle_config_dir"`
	// 0 means no client-side timeout
	HTTPTimeoutSec int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`

	// Project
	ProjectRoot  string `mapstructure:"project_root" yaml:"project_root"`
	RegistryPath string `mapstructure:"registry_path" yaml:"registry_path"`
	ReportDir    string `mapstructure:"report_dir" yaml:"report_dir"`

	// Loader
	Ambiguity        string `mapstructure:"ambiguity" yaml:"ambiguity"`
	CacheInvalidates bool   `mapstructure:"cache_invalidate_on_change" yaml:"cache_invalidate_on_change"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultPath returns ~/.datakit/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".datakit", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datakit/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return errors.Errorf("mkdir config dir: %w", err)
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return errors.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATAKIT")
	v.AutomaticEnv()

	v.SetDefault("kaggle_api_base", DefaultKaggleAPIBase)
	v.SetDefault("kaggle_config_dir", "")
	v.SetDefault("http_timeout_sec", 0)
	v.SetDefault("project_root", "")
	v.SetDefault("registry_path", filepath.Join("config", "project_config.json"))
	v.SetDefault("report_dir", "")
	v.SetDefault("ambiguity", AmbiguityPick)
	v.SetDefault("cache_invalidate_on_change", false)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(p))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit --config that does not exist surfaces as a PathError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errors.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated settings.
func (c *Global) Validate() error {
	switch c.Ambiguity {
	case AmbiguityPick, AmbiguityFail:
	default:
		return errors.Errorf("ambiguity must be %q or %q, got %q", AmbiguityPick, AmbiguityFail, c.Ambiguity)
	}
	if c.HTTPTimeoutSec < 0 {
		return errors.Errorf("http_timeout_sec must be >= 0, got %d", c.HTTPTimeoutSec)
	}
	return nil
}
