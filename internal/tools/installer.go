package tools

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/exec"
	"github.com/teaxyz/teabase/internal/logger"
)

// Options configures an Installer.
type Options struct {
	Tools map[ID]Tool

	// Timeout bounds a single install. Zero means no limit.
	Timeout time.Duration

	// SearchDirs are checked after PATH when detecting a tool.
	SearchDirs []string

	// Output receives live installer output when set.
	Output io.Writer
}

// Installer detects, installs and opens tools.
type Installer struct {
	runner exec.Runner
	opener Opener
	opts   Options
	log    logger.Logger

	// lookPath is swapped in tests.
	lookPath func(name string) (string, bool)

	mu    sync.Mutex
	locks map[ID]*sync.Mutex
}

// NewInstaller creates an Installer.
func NewInstaller(runner exec.Runner, opener Opener, opts Options, log logger.Logger) *Installer {
	if runner == nil {
		runner = exec.NewLocalRunner()
	}
	if opts.Tools == nil {
		opts.Tools = DefaultTools()
	}
	log = logger.OrDefault(log)
	if opener == nil {
		opener = NewSystemOpener(runner, log)
	}
	return &Installer{
		runner:   runner,
		opener:   opener,
		opts:     opts,
		log:      log,
		lookPath: exec.LookPath,
		locks:    make(map[ID]*sync.Mutex),
	}
}

// Tool returns the definition for id.
func (i *Installer) Tool(id ID) (Tool, error) {
	t, ok := i.opts.Tools[id]
	if !ok {
		return Tool{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown tool: %s", id),
			"Choose 'homebrew' or 'pkgx'")
	}
	return t, nil
}

// Find returns where the tool's binary lives, if anywhere.
func (i *Installer) Find(id ID) (string, bool) {
	t, err := i.Tool(id)
	if err != nil {
		return "", false
	}
	if p, ok := i.lookPath(t.Binary); ok {
		return p, true
	}
	for _, dir := range i.opts.SearchDirs {
		p := filepath.Join(dir, t.Binary)
		if isExecutable(p) {
			return p, true
		}
	}
	return "", false
}

// State reports whether id is installed.
func (i *Installer) State(id ID) State {
	t, _ := i.Tool(id)
	path, ok := i.Find(id)
	return State{Tool: id, Name: t.Name, Installed: ok, Path: path}
}

// States reports every known tool.
func (i *Installer) States() []State {
	ids := sortedIDs(i.opts.Tools)
	out := make([]State, 0, len(ids))
	for _, id := range ids {
		out = append(out, i.State(id))
	}
	return out
}

func (i *Installer) toolLock(id ID) *sync.Mutex {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.locks[id]
	if !ok {
		l = &sync.Mutex{}
		i.locks[id] = l
	}
	return l
}

// EnsureInstalled installs id unless it is already present. Concurrent
// calls for the same tool run one at a time; the second sees the first's
// result and returns without reinstalling.
func (i *Installer) EnsureInstalled(ctx context.Context, id ID) error {
	t, err := i.Tool(id)
	if err != nil {
		return err
	}

	l := i.toolLock(id)
	l.Lock()
	defer l.Unlock()

	if p, ok := i.Find(id); ok {
		i.log.Debug("%s already installed at %s", t.Name, p)
		return nil
	}

	script := i.installScript(t)
	cmd := exec.Shell(script)
	cmd.Env = t.Env
	cmd.Stream = i.opts.Output

	if i.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()
	}

	i.log.Info("installing %s", t.Name)
	start := time.Now()
	res, err := i.runner.Run(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.FromContext(ctxErr, fmt.Sprintf("Installing %s", t.Name))
		}
		if errors.IsCode(err, errors.ErrTimeout) || errors.IsCode(err, errors.ErrCancelled) {
			return err
		}
		return errors.WrapWithCode(err, errors.ErrInstall,
			fmt.Sprintf("Couldn't start the %s installer", t.Name),
			"Check that a shell and curl are available")
	}
	if !res.Success() {
		i.log.Error("%s installer exited %d", t.Name, res.ExitCode)
		return errors.NewInstallFailed(t.Name, res.ExitCode, string(res.Stderr))
	}

	if _, ok := i.Find(id); !ok {
		i.log.Warn("%s installer succeeded but %s isn't on PATH yet", t.Name, t.Binary)
	}
	i.log.Info("installed %s in %s", t.Name, time.Since(start).Round(time.Second))
	return nil
}

// installScript picks the installer for t. pkgx prefers Homebrew when it
// is available.
func (i *Installer) installScript(t Tool) string {
	if t.Install != "" {
		return t.Install
	}
	switch t.ID {
	case Homebrew:
		return homebrewInstall
	case PkgX:
		if _, ok := i.Find(Homebrew); ok {
			return pkgxViaBrew
		}
		return pkgxViaCurl
	}
	return ""
}

// OpenHome opens the tool's home page without waiting for the browser.
func (i *Installer) OpenHome(id ID) error {
	t, err := i.Tool(id)
	if err != nil {
		return err
	}
	return i.opener.Open(t.Home)
}
