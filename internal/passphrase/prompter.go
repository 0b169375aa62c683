package passphrase

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/teaxyz/teabase/internal/errors"
)

// Mode selects what a prompt asks for.
type Mode int

const (
	// ModeCreate asks for a new passphrase and its confirmation.
	ModeCreate Mode = iota
	// ModeVerify asks for the passphrase of an existing key.
	ModeVerify
)

// Request is what the controller asks the prompter to show.
type Request struct {
	Mode    Mode
	Policy  Policy
	Attempt int

	// Error is the message from the previous rejected attempt, if any.
	Error string

	// Primary pre-fills the first field after a mismatch.
	Primary string
}

// Response is the user's answer to a Request.
type Response struct {
	Primary      string
	Confirm      string
	NoPassphrase bool
	Cancel       bool
}

// Prompter presents a Request to the user and waits for their answer.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Response, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, req Request) (Response, error)

func (f PrompterFunc) Prompt(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// ChannelPrompter hands requests to a host over channels and waits for the
// reply. The host reads Requests and writes exactly one Response per request.
type ChannelPrompter struct {
	Requests  chan Request
	Responses chan Response
}

// NewChannelPrompter creates a prompter with unbuffered channels.
func NewChannelPrompter() *ChannelPrompter {
	return &ChannelPrompter{
		Requests:  make(chan Request),
		Responses: make(chan Response),
	}
}

func (p *ChannelPrompter) Prompt(ctx context.Context, req Request) (Response, error) {
	select {
	case p.Requests <- req:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-p.Responses:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// ScriptedPrompter answers from a fixed list of responses, for tests and
// non-interactive runs. Running out of responses is an error.
type ScriptedPrompter struct {
	mu        sync.Mutex
	responses []Response
	requests  []Request
}

// NewScriptedPrompter creates a prompter replaying responses in order.
func NewScriptedPrompter(responses ...Response) *ScriptedPrompter {
	return &ScriptedPrompter{responses: responses}
}

// NewReaderPrompter reads a single passphrase line from r (typically stdin)
// and uses it as both the passphrase and its confirmation.
func NewReaderPrompter(r io.Reader) (*ScriptedPrompter, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read passphrase from stdin",
			"Pipe the passphrase followed by a newline")
	}
	pass := normalize(line)
	return NewScriptedPrompter(Response{Primary: pass, Confirm: pass}), nil
}

func (p *ScriptedPrompter) Prompt(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return Response{}, errors.New(errors.ErrConfig,
			"No more passphrase input",
			"Provide the passphrase on stdin")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

// Requests returns every request seen so far.
func (p *ScriptedPrompter) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}
