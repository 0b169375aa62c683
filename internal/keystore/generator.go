package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/exec"
)

// Material is a freshly generated key pair in file form.
type Material struct {
	Private     []byte // PEM, OpenSSH format
	Public      []byte // authorized_keys line with trailing newline
	Fingerprint string
}

// Generator produces key material. Implementations must not write to the
// final key location.
type Generator interface {
	Name() string
	Generate(ctx context.Context, alg Algorithm, comment, passphrase string) (Material, error)
}

// NewGenerator returns the backend named by the keys.generator setting.
func NewGenerator(name string, runner exec.Runner) (Generator, error) {
	switch name {
	case "", "native":
		return NewNativeGenerator(), nil
	case "ssh-keygen":
		return NewSSHKeygenGenerator(runner), nil
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown key generator: %s", name),
		"Use 'native' or 'ssh-keygen'")
}

// NativeGenerator generates keys in-process with golang.org/x/crypto/ssh.
type NativeGenerator struct {
	rand io.Reader
}

// NewNativeGenerator returns a generator reading from crypto/rand.
func NewNativeGenerator() *NativeGenerator {
	return &NativeGenerator{rand: rand.Reader}
}

func (g *NativeGenerator) Name() string { return "native" }

// Generate creates a key of the given algorithm, encrypting the private
// half when passphrase is non-empty.
func (g *NativeGenerator) Generate(ctx context.Context, alg Algorithm, comment, passphrase string) (Material, error) {
	if err := ctx.Err(); err != nil {
		return Material{}, err
	}

	var (
		priv crypto.PrivateKey
		pub  crypto.PublicKey
	)
	switch alg {
	case Ed25519, "":
		p, k, err := ed25519.GenerateKey(g.rand)
		if err != nil {
			return Material{}, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
		}
		priv, pub = k, p
	case ECDSA:
		k, err := ecdsa.GenerateKey(elliptic.P256(), g.rand)
		if err != nil {
			return Material{}, fmt.Errorf("failed to generate ecdsa key pair: %w", err)
		}
		priv, pub = k, &k.PublicKey
	case RSA:
		k, err := rsa.GenerateKey(g.rand, 4096)
		if err != nil {
			return Material{}, fmt.Errorf("failed to generate rsa key pair: %w", err)
		}
		priv, pub = k, &k.PublicKey
	default:
		_, err := ParseAlgorithm(string(alg))
		return Material{}, err
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return Material{}, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, comment)
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, comment, []byte(passphrase))
	}
	if err != nil {
		return Material{}, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return Material{
		Private:     encodePEM(block),
		Public:      authorizedLine(sshPub, comment),
		Fingerprint: ssh.FingerprintSHA256(sshPub),
	}, nil
}

// SSHKeygenGenerator shells out to ssh-keygen, writing into a private
// temp directory and reading the result back.
type SSHKeygenGenerator struct {
	runner exec.Runner
}

// NewSSHKeygenGenerator returns a generator using runner to invoke ssh-keygen.
func NewSSHKeygenGenerator(runner exec.Runner) *SSHKeygenGenerator {
	if runner == nil {
		runner = exec.NewLocalRunner()
	}
	return &SSHKeygenGenerator{runner: runner}
}

func (g *SSHKeygenGenerator) Name() string { return "ssh-keygen" }

// Generate runs ssh-keygen. The passphrase is passed with -N, which is
// visible in the process table for the lifetime of the call.
func (g *SSHKeygenGenerator) Generate(ctx context.Context, alg Algorithm, comment, passphrase string) (Material, error) {
	if alg == "" {
		alg = Ed25519
	}

	tmp, err := os.MkdirTemp("", "teabase-keygen-")
	if err != nil {
		return Material{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	path := filepath.Join(tmp, "id_"+string(alg))
	args := []string{
		"-q",
		"-t", string(alg),
		"-f", path,
		"-N", passphrase,
		"-C", comment,
	}
	switch alg {
	case RSA:
		args = append(args, "-b", "4096")
	case ECDSA:
		args = append(args, "-b", "256")
	}

	res, err := g.runner.Run(ctx, exec.Command{Name: "ssh-keygen", Args: args})
	if err != nil {
		return Material{}, err
	}
	if !res.Success() {
		e := errors.New(errors.ErrGeneration,
			fmt.Sprintf("ssh-keygen failed: %s", strings.TrimSpace(string(res.Stderr))),
			"Ensure ssh-keygen is installed and accessible")
		e.ExitCode = res.ExitCode
		return Material{}, e
	}

	privData, err := os.ReadFile(path)
	if err != nil {
		return Material{}, fmt.Errorf("key generation completed but key file not found: %w", err)
	}
	pubData, err := os.ReadFile(path + ".pub")
	if err != nil {
		return Material{}, fmt.Errorf("key generation completed but public key not found: %w", err)
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(pubData)
	if err != nil {
		return Material{}, fmt.Errorf("ssh-keygen wrote an invalid public key: %w", err)
	}

	return Material{
		Private:     privData,
		Public:      pubData,
		Fingerprint: ssh.FingerprintSHA256(pub),
	}, nil
}

func encodePEM(block *pem.Block) []byte {
	return pem.EncodeToMemory(block)
}

func authorizedLine(pub ssh.PublicKey, comment string) []byte {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if comment != "" {
		line += " " + comment
	}
	return []byte(line + "\n")
}
