package camera

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"theta-panel/pkg/models"
)

const (
	PathExecute = "/osc/commands/execute"
	PathStatus  = "/osc/commands/status"

	DefaultPollInterval = time.Second
	DefaultPollAttempts = 30
)

// Poll outcomes reported to the observer.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
	OutcomeAborted   = "aborted"
)

// Observer is told how every command execution ended.
type Observer func(command string, attempts int, outcome string)

// Poller runs OSC commands that answer with an id and finish later: it
// dispatches the command, then asks for its status on a fixed interval until
// the camera reports done or error, or the attempt budget runs out.
type Poller struct {
	caller   Caller
	interval time.Duration
	attempts int
	observe  Observer
}

type PollerOption func(*Poller)

func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

func WithPollAttempts(n int) PollerOption {
	return func(p *Poller) { p.attempts = n }
}

func WithObserver(o Observer) PollerOption {
	return func(p *Poller) { p.observe = o }
}

func NewPoller(caller Caller, opts ...PollerOption) *Poller {
	p := &Poller{
		caller:   caller,
		interval: DefaultPollInterval,
		attempts: DefaultPollAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute blocks until the command reaches a terminal state. It returns the
// final status on done; a *CommandError wrapping ErrCommandFailed or
// ErrCommandTimeout otherwise. Transport failures are returned as they come.
func (p *Poller) Execute(ctx context.Context, cmd models.CommandRequest) (*models.CommandStatus, error) {
	resp, err := p.caller.Call(ctx, http.MethodPost, PathExecute, cmd)
	if err != nil {
		return nil, err
	}
	var started models.CommandStatus
	if err := resp.JSON(&started); err != nil {
		return nil, err
	}
	if started.State == models.StateError {
		p.report(cmd.Name, 0, OutcomeFailed)
		return nil, newCommandError(cmd.Name, started, 0, ErrCommandFailed)
	}
	if started.ID == "" {
		p.report(cmd.Name, 0, OutcomeFailed)
		return nil, ErrNoCommandID
	}

	logger := log.With().Str("command", cmd.Name).Str("id", started.ID).Logger()
	logger.Debug().Msg("command dispatched")

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := p.wait(ctx); err != nil {
			p.report(cmd.Name, attempt-1, OutcomeAborted)
			return nil, err
		}

		resp, err := p.caller.Call(ctx, http.MethodPost, PathStatus, models.StatusRequest{ID: started.ID})
		if err != nil {
			p.report(cmd.Name, attempt, OutcomeAborted)
			return nil, err
		}
		var status models.CommandStatus
		if err := resp.JSON(&status); err != nil {
			p.report(cmd.Name, attempt, OutcomeAborted)
			return nil, err
		}

		switch status.State {
		case models.StateDone:
			logger.Debug().Int("attempts", attempt).Msg("command done")
			p.report(cmd.Name, attempt, OutcomeCompleted)
			return &status, nil
		case models.StateError:
			p.report(cmd.Name, attempt, OutcomeFailed)
			return nil, newCommandError(cmd.Name, status, attempt, ErrCommandFailed)
		}
		logger.Debug().Int("attempt", attempt).Str("state", status.State).Msg("command pending")
	}

	p.report(cmd.Name, p.attempts, OutcomeTimedOut)
	return nil, &CommandError{Command: cmd.Name, ID: started.ID, Attempts: p.attempts, Err: ErrCommandTimeout}
}

func (p *Poller) wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Poller) report(command string, attempts int, outcome string) {
	if p.observe != nil {
		p.observe(command, attempts, outcome)
	}
}

func newCommandError(name string, status models.CommandStatus, attempts int, err error) *CommandError {
	ce := &CommandError{Command: name, ID: status.ID, Attempts: attempts, Err: err}
	if status.Error != nil {
		ce.Code = status.Error.Code
		ce.Message = status.Error.Message
	}
	return ce
}
