package signing

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/exec"
)

// GPGKey is a secret key available to gpg.
type GPGKey struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	UID         string `json:"uid"`
}

// GPGKeys lists the secret keys gpg knows about.
func (c *Configurator) GPGKeys(ctx context.Context) ([]GPGKey, error) {
	tctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.runner.Run(tctx, exec.Command{
		Name: "gpg",
		Args: []string{"--list-secret-keys", "--with-colons"},
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrTimeout) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			"Couldn't run gpg",
			"Install GnuPG, e.g. 'brew install gnupg'")
	}
	if !res.Success() {
		e := errors.New(errors.ErrKeyUnavailable,
			"gpg couldn't list secret keys: "+strings.TrimSpace(string(res.Stderr)),
			"Check your GnuPG setup with 'gpg --list-secret-keys'")
		e.ExitCode = res.ExitCode
		return nil, e
	}
	return parseColons(res.Stdout), nil
}

// parseColons reads gpg's --with-colons listing.
func parseColons(out []byte) []GPGKey {
	var (
		keys []GPGKey
		cur  *GPGKey
	)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		f := strings.Split(sc.Text(), ":")
		if len(f) < 10 {
			continue
		}
		switch f[0] {
		case "sec":
			keys = append(keys, GPGKey{ID: f[4]})
			cur = &keys[len(keys)-1]
		case "ssb":
			// subkey records end the primary key's fpr/uid section
			cur = nil
		case "fpr":
			if cur != nil && cur.Fingerprint == "" {
				cur.Fingerprint = f[9]
			}
		case "uid":
			if cur != nil && cur.UID == "" {
				cur.UID = f[9]
			}
		}
	}
	return keys
}

// HasGPGKey reports whether id names one of keys, by long id or fingerprint suffix.
func HasGPGKey(keys []GPGKey, id string) bool {
	id = strings.ToUpper(strings.TrimPrefix(id, "0x"))
	for _, k := range keys {
		if strings.EqualFold(k.ID, id) || (k.Fingerprint != "" && strings.HasSuffix(strings.ToUpper(k.Fingerprint), id)) {
			return true
		}
	}
	return false
}
