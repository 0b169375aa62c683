package doctor

import (
	"context"
	"fmt"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/signing"
)

// SigningReader reads back the applied signing configuration.
type SigningReader interface {
	Current(ctx context.Context) (signing.Preference, error)
	GPGKeys(ctx context.Context) ([]signing.GPGKey, error)
}

// SigningCheck verifies the signing key git is configured with still exists.
type SigningCheck struct {
	Signing SigningReader
}

func (c *SigningCheck) Name() string     { return "signing" }
func (c *SigningCheck) Category() string { return CategorySigning }

func (c *SigningCheck) Run(ctx context.Context) CheckResult {
	pref, err := c.Signing.Current(ctx)
	if err != nil {
		return result(c, StatusFail, "Couldn't read signing config: "+errors.UserMessage(err), "Check that git is installed and ~/.gitconfig is readable")
	}

	switch pref.Mode {
	case signing.SSH:
		if pref.Key == nil || !keystore.StillExists(*pref.Key) {
			path := ""
			if pref.Key != nil {
				path = pref.Key.PublicPath
			}
			return result(c, StatusFail, fmt.Sprintf("Commits are signed with %s, which no longer exists", path), "Run 'teabase ssh enable' or 'teabase ssh disable'")
		}
		return result(c, StatusPass, "Signing commits with SSH key "+pref.Key.PublicPath, "")

	case signing.GPG:
		keys, err := c.Signing.GPGKeys(ctx)
		if err != nil {
			return result(c, StatusFail, errors.UserMessage(err), "")
		}
		if !signing.HasGPGKey(keys, pref.GPGKeyID) {
			return result(c, StatusFail, fmt.Sprintf("GPG key %s is not in your keyring", pref.GPGKeyID), "Run 'teabase gpg enable' or 'teabase gpg disable'")
		}
		return result(c, StatusPass, "Signing commits with GPG key "+pref.GPGKeyID, "")
	}

	return result(c, StatusWarn, "Commit signing is off", "Turn it on with 'teabase ssh enable'")
}

func (c *SigningCheck) Fix(ctx context.Context) error { return nil }
