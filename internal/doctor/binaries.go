package doctor

import (
	"context"
	"fmt"
	osexec "os/exec"
)

// BinaryCheck verifies an external program is on PATH.
type BinaryCheck struct {
	Binary   string
	Required bool
	Purpose  string
	Install  string

	// LookPath finds the binary; nil means os/exec.LookPath.
	LookPath func(string) (string, error)
}

func (c *BinaryCheck) Name() string     { return "binary_" + c.Binary }
func (c *BinaryCheck) Category() string { return CategoryTools }

func (c *BinaryCheck) Run(ctx context.Context) CheckResult {
	look := c.LookPath
	if look == nil {
		look = osexec.LookPath
	}

	path, err := look(c.Binary)
	if err == nil {
		return result(c, StatusPass, fmt.Sprintf("%s: %s", c.Binary, path), "")
	}
	if !c.Required {
		return result(c, StatusPass, fmt.Sprintf("%s not installed (only needed for %s)", c.Binary, c.Purpose), "")
	}
	return result(c, StatusFail, fmt.Sprintf("%s not found on PATH (needed for %s)", c.Binary, c.Purpose), c.Install)
}

func (c *BinaryCheck) Fix(ctx context.Context) error { return nil }
