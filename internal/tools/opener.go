package tools

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/teaxyz/teabase/internal/exec"
	"github.com/teaxyz/teabase/internal/logger"
)

// Opener shows a URL to the user, typically in their browser.
type Opener interface {
	Open(url string) error
}

// SystemOpener hands URLs to the platform's open command. Open returns
// immediately; failures are only logged.
type SystemOpener struct {
	runner  exec.Runner
	log     logger.Logger
	command string
	wg      sync.WaitGroup
}

// NewSystemOpener creates an opener using `open` on macOS and `xdg-open`
// elsewhere.
func NewSystemOpener(runner exec.Runner, log logger.Logger) *SystemOpener {
	cmd := "xdg-open"
	if runtime.GOOS == "darwin" {
		cmd = "open"
	}
	return &SystemOpener{runner: runner, log: logger.OrDefault(log), command: cmd}
}

func (o *SystemOpener) Open(url string) error {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		res, err := o.runner.Run(ctx, exec.Command{Name: o.command, Args: []string{url}})
		if err != nil {
			o.log.Warn("couldn't open %s: %v", url, err)
			return
		}
		if !res.Success() {
			o.log.Warn("%s %s exited %d", o.command, url, res.ExitCode)
		}
	}()
	return nil
}

// Wait blocks until every Open call has finished. The CLI calls it before
// exiting so the child process isn't killed.
func (o *SystemOpener) Wait() {
	o.wg.Wait()
}
