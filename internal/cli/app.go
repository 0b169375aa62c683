package cli

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/bootstrap"
	"github.com/teaxyz/teabase/internal/config"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/exec"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/lock"
	"github.com/teaxyz/teabase/internal/logger"
	"github.com/teaxyz/teabase/internal/pane"
	"github.com/teaxyz/teabase/internal/passphrase"
	"github.com/teaxyz/teabase/internal/signing"
	"github.com/teaxyz/teabase/internal/tools"
	"github.com/teaxyz/teabase/internal/ui"
)

// App is the wired set of components a command works with.
type App struct {
	Config    *config.Config
	Keys      *keystore.Store
	Signer    *signing.Configurator
	Installer *tools.Installer
	Locker    *lock.Manager
	Pane      *pane.API

	opener tools.Opener
}

// AppOptions overrides the process-facing pieces of an App.
type AppOptions struct {
	Runner    exec.Runner
	Prompter  passphrase.Prompter
	Opener    tools.Opener
	Clipboard pane.Clipboard
	HomeDir   string

	// InstallOutput receives live installer output.
	InstallOutput io.Writer
}

// NewApp wires every component from cfg.
func NewApp(cfg *config.Config, o AppOptions) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	runner := o.Runner
	if runner == nil {
		runner = exec.NewLocalRunner()
	}
	home := o.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	alg, err := keystore.ParseAlgorithm(cfg.Keys.Algorithm)
	if err != nil {
		return nil, err
	}
	gen, err := keystore.NewGenerator(cfg.Keys.Generator, runner)
	if err != nil {
		return nil, err
	}
	keys := keystore.New(keystore.Options{
		Path:         cfg.Keys.Path,
		Algorithm:    alg,
		Comment:      cfg.Keys.Comment,
		SSHConfig:    cfg.Keys.SSHConfig,
		IdentityHost: cfg.Keys.IdentityHost,
		HomeDir:      home,
	}, gen, logger.New("[keystore]"))

	prompter := o.Prompter
	if prompter == nil {
		prompter = defaultPrompter(keys)
	}
	pass := passphrase.NewController(passphrase.Policy{
		MinLength:  cfg.Passphrase.MinLength,
		AllowEmpty: cfg.Passphrase.AllowEmpty,
	}, prompter, logger.New("[passphrase]"))

	store, err := signing.NewStore(cfg.Signing, runner)
	if err != nil {
		return nil, err
	}
	signer := signing.New(store, runner, signing.Options{
		SignTags: cfg.Signing.SignTags,
		Timeout:  cfg.Timeouts.Command,
	}, logger.New("[signing]"))

	opener := o.Opener
	if opener == nil {
		opener = tools.NewSystemOpener(runner, logger.New("[open]"))
	}
	installer := tools.NewInstaller(runner, opener, tools.Options{
		Tools:      tools.FromConfig(cfg.Tools),
		Timeout:    cfg.Timeouts.Install,
		SearchDirs: tools.DefaultSearchDirs(home),
		Output:     o.InstallOutput,
	}, logger.New("[tools]"))

	locker := lock.NewManager(cfg.Lock, logger.New("[lock]"))

	coord := bootstrap.New(keys, pass, signer, bootstrap.Options{
		GenerateTimeout: cfg.Timeouts.Generate,
		GPGKey:          cfg.Signing.GPGKey,
	}, logger.New("[bootstrap]"))

	api := pane.New(pane.Deps{
		Keys:        keys,
		Coordinator: coord,
		Signing:     signer,
		Tools:       installer,
		Opener:      opener,
		Clipboard:   o.Clipboard,
		Locker:      locker,
		Log:         logger.New("[pane]"),
	})

	return &App{
		Config:    cfg,
		Keys:      keys,
		Signer:    signer,
		Installer: installer,
		Locker:    locker,
		Pane:      api,
		opener:    opener,
	}, nil
}

// Close waits for browser launches started by the App.
func (a *App) Close() {
	if w, ok := a.opener.(interface{ Wait() }); ok {
		w.Wait()
	}
}

// defaultPrompter picks how passphrases are collected: stdin with
// --passphrase-stdin, a huh form on a terminal, and otherwise an error
// asking for one of those.
func defaultPrompter(keys *keystore.Store) passphrase.Prompter {
	if passphraseStdin {
		return stdinPrompter(os.Stdin)
	}
	if ui.Interactive() {
		return passphrase.FormPrompter{Title: "Passphrase for " + keys.Resolve().PrivatePath}
	}
	return passphrase.PrompterFunc(func(ctx context.Context, req passphrase.Request) (passphrase.Response, error) {
		return passphrase.Response{}, errors.New(errors.ErrConfig,
			"A passphrase is needed but there's no terminal to ask on",
			"Pipe it in with --passphrase-stdin")
	})
}

// stdinPrompter reads r only when a passphrase is first requested.
func stdinPrompter(r io.Reader) passphrase.Prompter {
	var (
		once  sync.Once
		inner passphrase.Prompter
		err   error
	)
	return passphrase.PrompterFunc(func(ctx context.Context, req passphrase.Request) (passphrase.Response, error) {
		once.Do(func() { inner, err = passphrase.NewReaderPrompter(r) })
		if err != nil {
			return passphrase.Response{}, err
		}
		return inner.Prompt(ctx, req)
	})
}

// appFactory builds the App for a command; tests swap it out.
var appFactory = func(cmd *cobra.Command, o AppOptions) (*App, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	ui.ColorMode(cfg.Output.Color, noColor, cmd.OutOrStdout())
	return NewApp(cfg, o)
}

// withApp runs fn with a freshly built App and closes it afterwards.
func withApp(cmd *cobra.Command, o AppOptions, fn func(*App) error) error {
	app, err := appFactory(cmd, o)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
