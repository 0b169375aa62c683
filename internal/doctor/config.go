package doctor

import (
	"context"
	"fmt"

	"github.com/teaxyz/teabase/internal/config"
	"github.com/teaxyz/teabase/internal/errors"
)

// ConfigCheck verifies the config file loads and validates. Running on
// built-in defaults is fine.
type ConfigCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return CategoryConfig }

func (c *ConfigCheck) Run(ctx context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return result(c, StatusFail, errors.UserMessage(err), "Check the --config path")
	}

	if path == "" {
		return result(c, StatusPass, "No config file, using built-in defaults", "")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return result(c, StatusFail, fmt.Sprintf("Failed to load %s", path), "Check the YAML syntax in your config file")
	}
	if err := config.Validate(cfg); err != nil {
		return result(c, StatusFail, fmt.Sprintf("Invalid config %s: %s", path, errors.UserMessage(err)), "Fix the value, or regenerate with 'teabase config init --force'")
	}

	return result(c, StatusPass, "Config file: "+path, "")
}

func (c *ConfigCheck) Fix(ctx context.Context) error { return nil }
