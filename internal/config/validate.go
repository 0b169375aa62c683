package config

import (
	"fmt"
	"time"

	"github.com/teaxyz/teabase/internal/errors"
)

// Accepted values for enumerated settings.
var (
	ValidAlgorithms = []string{"ed25519", "ecdsa", "rsa"}
	ValidGenerators = []string{"native", "ssh-keygen"}
	ValidStores     = []string{"git", "file"}
	ValidColors     = []string{"auto", "always", "never"}
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but teabase only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade teabase to the latest release")
	}

	if err := oneOf("keys.algorithm", cfg.Keys.Algorithm, ValidAlgorithms); err != nil {
		return err
	}
	if err := oneOf("keys.generator", cfg.Keys.Generator, ValidGenerators); err != nil {
		return err
	}
	if err := oneOf("signing.store", cfg.Signing.Store, ValidStores); err != nil {
		return err
	}
	if cfg.Signing.Store == "file" && cfg.Signing.File == "" {
		return errors.New(errors.ErrConfig,
			"signing.store is 'file' but signing.file is empty",
			"Set signing.file to a writable YAML path")
	}
	if err := oneOf("output.color", cfg.Output.Color, ValidColors); err != nil {
		return err
	}

	if cfg.Passphrase.MinLength < 0 {
		return errors.New(errors.ErrConfig,
			"passphrase.min_length can't be negative",
			"Use 0 to disable the length check, or something like 8")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"timeouts.generate", cfg.Timeouts.Generate},
		{"timeouts.install", cfg.Timeouts.Install},
		{"timeouts.command", cfg.Timeouts.Command},
		{"lock.stale", cfg.Lock.Stale},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s must be positive (got %s)", d.name, d.d),
				"Use a duration like 30s, 5m, or 1h")
		}
	}

	return nil
}

func oneOf(name, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("'%s' isn't a valid %s", value, name),
		fmt.Sprintf("Use one of: %v", valid))
}
