package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/teaxyz/teabase/internal/errors"
)

const (
	// GlobalConfigDir is the directory for the config file, relative to home.
	GlobalConfigDir = ".config/teabase"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. TEABASE_KEYS_ALGORITHM.
	EnvPrefix = "TEABASE"
)

// DefaultPath returns ~/.config/teabase/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", GlobalConfigDir, GlobalConfigFile)
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. ~/.config/teabase/config.yaml
//
// Returns an empty string if no config file exists.
func Find(explicit string) (string, error) {
	if explicit != "" {
		path := ExpandHome(explicit)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return path, nil
	}

	path := DefaultPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", nil
}

// Load reads config from the specified path. Environment overrides apply.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'teabase config init' to create one, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// LoadOrDefault loads the config found by Find, or returns defaults (with
// environment overrides) when there is none.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}

	if path == "" {
		return parseConfig(newViper(), "")
	}

	return Load(path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can override it even
// without a config file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("keys.path", d.Keys.Path)
	v.SetDefault("keys.algorithm", d.Keys.Algorithm)
	v.SetDefault("keys.generator", d.Keys.Generator)
	v.SetDefault("keys.comment", d.Keys.Comment)
	v.SetDefault("keys.ssh_config", d.Keys.SSHConfig)
	v.SetDefault("keys.identity_host", d.Keys.IdentityHost)
	v.SetDefault("passphrase.min_length", d.Passphrase.MinLength)
	v.SetDefault("passphrase.allow_empty", d.Passphrase.AllowEmpty)
	v.SetDefault("signing.store", d.Signing.Store)
	v.SetDefault("signing.file", d.Signing.File)
	v.SetDefault("signing.sign_tags", d.Signing.SignTags)
	v.SetDefault("signing.gpg_key", d.Signing.GPGKey)
	v.SetDefault("tools.homebrew.install", d.Tools.Homebrew.Install)
	v.SetDefault("tools.homebrew.home", d.Tools.Homebrew.Home)
	v.SetDefault("tools.pkgx.install", d.Tools.PkgX.Install)
	v.SetDefault("tools.pkgx.home", d.Tools.PkgX.Home)
	v.SetDefault("timeouts.generate", d.Timeouts.Generate.String())
	v.SetDefault("timeouts.install", d.Timeouts.Install.String())
	v.SetDefault("timeouts.command", d.Timeouts.Command.String())
	v.SetDefault("lock.dir", d.Lock.Dir)
	v.SetDefault("lock.stale", d.Lock.Stale.String())
	v.SetDefault("output.color", d.Output.Color)
}

// parseConfig converts viper config to our Config struct and expands paths.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "your config"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+where)
	}

	cfg.Keys.Path = ExpandHome(cfg.Keys.Path)
	cfg.Keys.SSHConfig = ExpandHome(cfg.Keys.SSHConfig)
	cfg.Signing.File = ExpandHome(cfg.Signing.File)
	cfg.Lock.Dir = ExpandHome(cfg.Lock.Dir)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// WriteDefault writes a default config file to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	path = ExpandHome(path)
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Pass --force to overwrite it")
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't render default config",
			"This shouldn't happen - please report this bug!")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create config directory",
			"Check permissions on "+filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write config file",
			"Check permissions on "+path)
	}
	return nil
}
