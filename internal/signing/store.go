package signing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/teaxyz/teabase/internal/config"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/exec"
)

// Store is the global configuration store the signing keys live in.
type Store interface {
	// Get returns the value of key and whether it is set.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Unset removes key. Removing a key that isn't set is not an error.
	Unset(ctx context.Context, key string) error
}

// NewStore returns the store selected by cfg.
func NewStore(cfg config.SigningConfig, runner exec.Runner) (Store, error) {
	switch cfg.Store {
	case "", "git":
		return NewGitStore(runner), nil
	case "file":
		return NewFileStore(cfg.File), nil
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown signing store: %s", cfg.Store),
		"Use 'git' or 'file'")
}

// GitStore reads and writes the user's global git config.
type GitStore struct {
	runner exec.Runner
}

// NewGitStore creates a store backed by `git config --global`.
func NewGitStore(runner exec.Runner) *GitStore {
	if runner == nil {
		runner = exec.NewLocalRunner()
	}
	return &GitStore{runner: runner}
}

func (s *GitStore) git(ctx context.Context, args ...string) (exec.Result, error) {
	return s.runner.Run(ctx, exec.Command{
		Name: "git",
		Args: append([]string{"config", "--global"}, args...),
	})
}

func (s *GitStore) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := s.git(ctx, "--get", key)
	if err != nil {
		return "", false, err
	}
	switch res.ExitCode {
	case 0:
		return strings.TrimSpace(string(res.Stdout)), true, nil
	case 1:
		// git exits 1 when the key isn't set
		return "", false, nil
	}
	return "", false, gitErr("read", key, res)
}

func (s *GitStore) Set(ctx context.Context, key, value string) error {
	res, err := s.git(ctx, key, value)
	if err != nil {
		return err
	}
	if !res.Success() {
		return gitErr("write", key, res)
	}
	return nil
}

func (s *GitStore) Unset(ctx context.Context, key string) error {
	res, err := s.git(ctx, "--unset", key)
	if err != nil {
		return err
	}
	// exit 5: the key wasn't set
	if res.ExitCode != 0 && res.ExitCode != 5 {
		return gitErr("unset", key, res)
	}
	return nil
}

func gitErr(op, key string, res exec.Result) error {
	e := errors.New(errors.ErrConfigWrite,
		fmt.Sprintf("git config couldn't %s %s: %s", op, key, strings.TrimSpace(string(res.Stderr))),
		"Check that ~/.gitconfig is writable")
	e.ExitCode = res.ExitCode
	return e
}

// FileStore keeps signing settings in a flat YAML map. Useful on machines
// without git and for inspecting what would be written.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the YAML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Unset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}
