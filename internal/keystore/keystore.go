package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/logger"
	"github.com/teaxyz/teabase/internal/util"
)

// Algorithm is an SSH key type.
type Algorithm string

const (
	Ed25519 Algorithm = "ed25519"
	ECDSA   Algorithm = "ecdsa"
	RSA     Algorithm = "rsa"
)

// ParseAlgorithm validates an algorithm name. Empty means Ed25519.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", Ed25519:
		return Ed25519, nil
	case ECDSA:
		return ECDSA, nil
	case RSA:
		return RSA, nil
	}
	return "", errors.New(errors.ErrGeneration,
		fmt.Sprintf("Invalid key type: %s", s),
		util.DidYouMean(s, []string{string(Ed25519), string(ECDSA), string(RSA)})+
			"Supported types: ed25519 (recommended), ecdsa, rsa")
}

// KeyPair is an SSH identity on disk. Its identity is the path pair.
type KeyPair struct {
	PrivatePath   string
	PublicPath    string
	Algorithm     Algorithm
	HasPassphrase bool
	Fingerprint   string
}

// Options configures a Store.
type Options struct {
	// Path to the private key. Empty means resolve.
	Path string

	// Algorithm for new keys.
	Algorithm Algorithm

	// Comment embedded in new public keys. Empty means "<user>@<host>".
	Comment string

	// SSHConfig is the ssh client config consulted for IdentityFile.
	SSHConfig string

	// IdentityHost is the Host whose IdentityFile names the signing key.
	IdentityHost string

	// HomeDir overrides the user's home directory (tests).
	HomeDir string
}

// GenerateOptions controls a single Generate call.
type GenerateOptions struct {
	Algorithm  Algorithm
	Passphrase string
	Overwrite  bool
}

// Store inspects and manages the on-disk key pair.
type Store struct {
	opts Options
	gen  Generator
	log  logger.Logger

	mu sync.Mutex

	// rename moves staged files into place; swapped in tests to inject failures.
	rename func(oldpath, newpath string) error
}

// New creates a Store. A nil generator means the native backend.
func New(opts Options, gen Generator, log logger.Logger) *Store {
	if gen == nil {
		gen = NewNativeGenerator()
	}
	if opts.Algorithm == "" {
		opts.Algorithm = Ed25519
	}
	if opts.HomeDir == "" {
		opts.HomeDir, _ = os.UserHomeDir()
	}
	return &Store{
		opts:   opts,
		gen:    gen,
		log:    logger.OrDefault(log),
		rename: os.Rename,
	}
}

// DefaultKeyPaths returns the standard key locations in preference order.
func (s *Store) DefaultKeyPaths() []string {
	if s.opts.HomeDir == "" {
		return nil
	}
	return []string{
		filepath.Join(s.opts.HomeDir, ".ssh", "id_ed25519"),
		filepath.Join(s.opts.HomeDir, ".ssh", "id_ecdsa"),
		filepath.Join(s.opts.HomeDir, ".ssh", "id_rsa"),
	}
}

// Resolve returns the path pair the store operates on. It does not
// require the files to exist.
func (s *Store) Resolve() KeyPair {
	path := s.resolvePath()
	return KeyPair{
		PrivatePath: path,
		PublicPath:  path + ".pub",
		Algorithm:   inferKeyType(path, s.opts.Algorithm),
	}
}

func (s *Store) resolvePath() string {
	if s.opts.Path != "" {
		return s.opts.Path
	}

	if s.opts.SSHConfig != "" && s.opts.IdentityHost != "" {
		identity, err := IdentityFile(s.opts.SSHConfig, s.opts.IdentityHost, s.opts.HomeDir)
		if err != nil {
			s.log.Warn("couldn't read %s: %v", s.opts.SSHConfig, err)
		} else if identity != "" && fileExists(identity) {
			return identity
		}
	}

	for _, p := range s.DefaultKeyPaths() {
		if fileExists(p) {
			return p
		}
	}

	return filepath.Join(s.opts.HomeDir, ".ssh", "id_"+string(s.opts.Algorithm))
}

// isFallbackPath reports whether pair is the unconfigured default location
// with no files present.
func (s *Store) isFallbackPath(pair KeyPair) bool {
	if s.opts.Path != "" || fileExists(pair.PrivatePath) || fileExists(pair.PublicPath) {
		return false
	}
	return pair.PrivatePath == filepath.Join(s.opts.HomeDir, ".ssh", "id_"+string(s.opts.Algorithm))
}

// Exists reports whether both the private and public key files are present.
func (s *Store) Exists() bool {
	pair := s.Resolve()
	return pairExists(pair)
}

func pairExists(pair KeyPair) bool {
	return fileExists(pair.PrivatePath) && fileExists(pair.PublicPath)
}

// Inspect reads the on-disk pair, determining its algorithm, fingerprint,
// and whether the private key is passphrase-protected.
func (s *Store) Inspect() (KeyPair, error) {
	return inspect(s.Resolve())
}

func inspect(pair KeyPair) (KeyPair, error) {
	if !pairExists(pair) {
		return pair, errors.New(errors.ErrKeyUnavailable,
			fmt.Sprintf("No SSH key pair at %s", pair.PrivatePath),
			"Generate one with 'teabase ssh keygen'")
	}

	pubData, err := os.ReadFile(pair.PublicPath)
	if err != nil {
		return pair, errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			fmt.Sprintf("Failed to read public key: %s", pair.PublicPath),
			"Check that the file exists and is readable")
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(pubData)
	if err != nil {
		return pair, errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			fmt.Sprintf("Public key is not valid: %s", pair.PublicPath),
			"Regenerate the key pair with 'teabase ssh keygen --force'")
	}
	pair.Algorithm = algorithmFromType(pub.Type(), pair.Algorithm)
	pair.Fingerprint = ssh.FingerprintSHA256(pub)

	privData, err := os.ReadFile(pair.PrivatePath)
	if err != nil {
		return pair, errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			fmt.Sprintf("Failed to read private key: %s", pair.PrivatePath),
			"Check that the file exists and is readable")
	}
	_, err = ssh.ParseRawPrivateKey(privData)
	var missing *ssh.PassphraseMissingError
	switch {
	case err == nil:
		pair.HasPassphrase = false
	case stderrors.As(err, &missing):
		pair.HasPassphrase = true
	default:
		return pair, errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			fmt.Sprintf("Private key is not readable: %s", pair.PrivatePath),
			"Use an OpenSSH, PKCS#1, or PKCS#8 key, or regenerate with 'teabase ssh keygen --force'")
	}

	return pair, nil
}

// Generate creates a new key pair at the resolved path. It fails with
// KEY_EXISTS when a pair is present and Overwrite is false, leaving the
// existing files untouched, and with GENERATION on OS or crypto errors.
func (s *Store) Generate(ctx context.Context, opts GenerateOptions) (KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alg := opts.Algorithm
	if alg == "" {
		alg = s.opts.Algorithm
	}
	if _, err := ParseAlgorithm(string(alg)); err != nil {
		return KeyPair{}, err
	}

	pair := s.Resolve()
	if alg != pair.Algorithm && s.isFallbackPath(pair) {
		// Nothing on disk yet: name the new file after its algorithm.
		path := filepath.Join(s.opts.HomeDir, ".ssh", "id_"+string(alg))
		pair = KeyPair{PrivatePath: path, PublicPath: path + ".pub", Algorithm: alg}
	}
	if !opts.Overwrite && (fileExists(pair.PrivatePath) || fileExists(pair.PublicPath)) {
		return pair, errors.New(errors.ErrKeyExists,
			fmt.Sprintf("Key already exists at %s", pair.PrivatePath),
			"Pass --force to replace it, or delete the existing key")
	}

	dir := filepath.Dir(pair.PrivatePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return pair, errors.WrapWithCode(err, errors.ErrGeneration,
			fmt.Sprintf("Failed to create SSH directory: %s", dir),
			"Check permissions on your home directory")
	}

	s.log.Debug("generating %s key at %s (backend %s)", alg, pair.PrivatePath, s.gen.Name())
	material, err := s.gen.Generate(ctx, alg, s.comment(), opts.Passphrase)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pair, errors.FromContext(ctxErr, "Key generation")
		}
		if errors.CodeOf(err) != "" {
			return pair, err
		}
		return pair, errors.WrapWithCode(err, errors.ErrGeneration,
			"Failed to generate SSH key",
			"Check that your system has enough entropy and disk space")
	}

	if err := s.writePair(pair, material); err != nil {
		return pair, err
	}

	pair.Algorithm = alg
	pair.HasPassphrase = opts.Passphrase != ""
	pair.Fingerprint = material.Fingerprint
	s.log.Info("generated %s key %s at %s", alg, pair.Fingerprint, pair.PrivatePath)
	return pair, nil
}

// Verify checks passphrase against the pair's private key. It fails with
// PASSPHRASE_MISMATCH when the passphrase doesn't decrypt the key.
func (s *Store) Verify(pair KeyPair, passphrase string) error {
	data, err := os.ReadFile(pair.PrivatePath)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			fmt.Sprintf("Failed to read private key: %s", pair.PrivatePath),
			"Check that the file exists and is readable")
	}

	if passphrase == "" {
		if _, err := ssh.ParseRawPrivateKey(data); err != nil {
			return mismatch()
		}
		return nil
	}

	if _, err := ssh.ParseRawPrivateKeyWithPassphrase(data, []byte(passphrase)); err != nil {
		if stderrors.Is(err, x509.IncorrectPasswordError) {
			return mismatch()
		}
		return errors.WrapWithCode(err, errors.ErrPassphraseMismatch,
			"Passphrase doesn't unlock this key",
			"Check the key is passphrase protected")
	}
	return nil
}

func mismatch() error {
	return errors.New(errors.ErrPassphraseMismatch,
		"Passphrase doesn't unlock this key",
		"Try again")
}

// Protect re-encrypts an unprotected private key with passphrase. The
// public key is unchanged; the private key is replaced atomically.
func (s *Store) Protect(ctx context.Context, pair KeyPair, passphrase string) (KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return pair, errors.FromContext(err, "Protecting key")
	}

	if passphrase == "" {
		return pair, errors.New(errors.ErrPassphraseWeak,
			"Can't protect a key with an empty passphrase",
			"Choose a passphrase")
	}

	data, err := os.ReadFile(pair.PrivatePath)
	if err != nil {
		return pair, errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			fmt.Sprintf("Failed to read private key: %s", pair.PrivatePath),
			"Check that the file exists and is readable")
	}
	raw, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		return pair, errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			"Key is already protected or unreadable",
			"Change an existing passphrase with 'ssh-keygen -p'")
	}
	if p, ok := raw.(*ed25519.PrivateKey); ok {
		raw = *p
	}

	comment := ""
	if pubData, err := os.ReadFile(pair.PublicPath); err == nil {
		if _, c, _, _, err := ssh.ParseAuthorizedKey(pubData); err == nil {
			comment = c
		}
	}

	block, err := ssh.MarshalPrivateKeyWithPassphrase(raw, comment, []byte(passphrase))
	if err != nil {
		return pair, errors.WrapWithCode(err, errors.ErrGeneration,
			"Failed to encrypt private key",
			"This key type may not support OpenSSH encryption")
	}

	if err := s.writeAtomic(pair.PrivatePath, encodePEM(block), 0o600); err != nil {
		return pair, err
	}

	pair.HasPassphrase = true
	s.log.Info("added passphrase to %s", pair.PrivatePath)
	return pair, nil
}

// PublicKey returns the authorized_keys line for pair.
func (s *Store) PublicKey(pair KeyPair) (string, error) {
	data, err := os.ReadFile(pair.PublicPath)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrKeyUnavailable,
			fmt.Sprintf("Failed to read public key: %s", pair.PublicPath),
			"Check that the file exists and is readable")
	}
	return strings.TrimSpace(string(data)), nil
}

// StillExists re-checks the pair on disk. Callers use it right before
// acting on a pair rather than trusting an earlier check.
func StillExists(pair KeyPair) bool {
	return pairExists(pair)
}

func (s *Store) comment() string {
	if s.opts.Comment != "" {
		return s.opts.Comment
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "teabase"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return user
	}
	return user + "@" + host
}

// inferKeyType determines key type from filename, falling back to def.
func inferKeyType(path string, def Algorithm) Algorithm {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, "ed25519"):
		return Ed25519
	case strings.Contains(base, "ecdsa"):
		return ECDSA
	case strings.Contains(base, "rsa"):
		return RSA
	default:
		return def
	}
}

func algorithmFromType(keyType string, def Algorithm) Algorithm {
	switch {
	case keyType == ssh.KeyAlgoED25519:
		return Ed25519
	case strings.HasPrefix(keyType, "ecdsa-"):
		return ECDSA
	case keyType == ssh.KeyAlgoRSA:
		return RSA
	}
	return def
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
