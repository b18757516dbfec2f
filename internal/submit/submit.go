// Package submit implements the add-playlist control: it holds the typed
// identifier, guards against concurrent submissions, sends the create request
// and relays the outcome to the host.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zarlcorp/zplay/internal/playlist"
	"go.uber.org/zap"
)

// FallbackMessage is shown when the backend gives no usable error text.
const FallbackMessage = "Failed to add playlist"

// State is the submission lifecycle of a Controller.
type State int

const (
	Idle State = iota
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Creator issues the create-playlist request.
// *playlist.Client satisfies it.
type Creator interface {
	Create(ctx context.Context, urlOrID string) (json.RawMessage, error)
}

// Notifier receives the outcome of submissions on behalf of the host view.
type Notifier interface {
	// PlaylistAdded is called exactly once per successful submission.
	PlaylistAdded()
	// SetError replaces the displayed error; "" clears it.
	SetError(msg string)
}

// NotifierFuncs adapts plain functions to a Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	Added func()
	Error func(msg string)
}

func (f NotifierFuncs) PlaylistAdded() {
	if f.Added != nil {
		f.Added()
	}
}

func (f NotifierFuncs) SetError(msg string) {
	if f.Error != nil {
		f.Error(msg)
	}
}

// Snapshot is a copy of the control's state at one point in time.
type Snapshot struct {
	Value string // raw, untrimmed
	State State
	Err   string
}

// CanSubmit reports whether a submit would be accepted.
func (s Snapshot) CanSubmit() bool {
	return strings.TrimSpace(s.Value) != "" && s.State == Idle
}

// Kind classifies a completed submission.
type Kind int

const (
	Added Kind = iota
	Rejected
	Failed
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome describes how a submission settled.
type Outcome struct {
	Kind    Kind
	Message string          // user-facing error text, empty when Added
	Payload json.RawMessage // success body
	Err     error           // underlying error for Rejected and Failed
}

// Controller is the state holder for one add-playlist control.
// All methods are safe for concurrent use.
type Controller struct {
	creator  Creator
	notifier Notifier
	log      *zap.Logger

	mu    sync.Mutex
	value string
	state State
	err   string

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates an idle controller with an empty identifier.
func New(creator Creator, notifier Notifier, opts ...Option) *Controller {
	if notifier == nil {
		notifier = NotifierFuncs{}
	}
	c := &Controller{
		creator:  creator,
		notifier: notifier,
		log:      zap.NewNop(),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetValue replaces the identifier. Edits are accepted in any state.
func (c *Controller) SetValue(text string) {
	c.mu.Lock()
	c.value = text
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Value returns the identifier trimmed of surrounding whitespace.
func (c *Controller) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.value)
}

// Raw returns the identifier exactly as typed.
func (c *Controller) Raw() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// State returns the current submission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last error relayed to the host.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Snapshot returns the current state triple.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{Value: c.value, State: c.state, Err: c.err}
}

// Subscribe registers fn to be called with a snapshot after every state
// change. The returned func removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) publish(s Snapshot) {
	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Begin checks the guard conditions and, if they pass, moves the controller
// to Submitting and returns the attempt to run. It returns false when the
// trimmed identifier is empty or a submission is already in flight; nothing
// changes in that case.
//
// The caller must call Run on the returned attempt exactly once.
func (c *Controller) Begin() (*Attempt, bool) {
	c.mu.Lock()
	urlOrID := strings.TrimSpace(c.value)
	if urlOrID == "" {
		c.mu.Unlock()
		c.log.Debug("submit ignored", zap.String("reason", "empty identifier"))
		return nil, false
	}
	if c.state == Submitting {
		c.mu.Unlock()
		c.log.Debug("submit ignored", zap.String("reason", "in flight"))
		return nil, false
	}

	c.err = ""
	c.state = Submitting
	snap := c.snapshotLocked()
	c.mu.Unlock()

	// a panicking host callback must not leave the control stuck in Submitting
	started := false
	defer func() {
		if !started {
			c.release()
		}
	}()

	c.notifier.SetError("")
	c.publish(snap)

	started = true
	return &Attempt{c: c, urlOrID: urlOrID}, true
}

// Submit runs a whole submission synchronously. The bool is false when a
// guard turned the call into a no-op.
func (c *Controller) Submit(ctx context.Context) (Outcome, bool) {
	a, ok := c.Begin()
	if !ok {
		return Outcome{}, false
	}
	return a.Run(ctx), true
}

// Attempt is one accepted submission.
type Attempt struct {
	c       *Controller
	urlOrID string
}

// URLOrID returns the trimmed identifier being submitted.
func (a *Attempt) URLOrID() string { return a.urlOrID }

// Run issues the create request and relays its outcome. The controller is
// back to Idle when Run returns, whatever happened, including a panic in
// the creator.
func (a *Attempt) Run(ctx context.Context) (out Outcome) {
	c := a.c
	defer c.release()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("create playlist: panic: %v", r)
			c.log.Error("add playlist failed", zap.String("url_or_id", a.urlOrID), zap.Error(err))
			c.fail(FallbackMessage)
			out = Outcome{Kind: Failed, Message: FallbackMessage, Err: err}
		}
	}()

	payload, err := c.creator.Create(ctx, a.urlOrID)
	if err == nil {
		c.notifier.PlaylistAdded()
		c.mu.Lock()
		c.value = ""
		c.mu.Unlock()
		c.log.Info("playlist added", zap.String("url_or_id", a.urlOrID))
		return Outcome{Kind: Added, Payload: payload}
	}

	var rej *playlist.RejectionError
	if errors.As(err, &rej) {
		msg := rej.Message
		if msg == "" {
			msg = FallbackMessage
		}
		c.log.Info("add playlist rejected",
			zap.String("url_or_id", a.urlOrID),
			zap.Int("status", rej.StatusCode),
			zap.String("message", rej.Message),
		)
		c.fail(msg)
		return Outcome{Kind: Rejected, Message: msg, Err: err}
	}

	c.log.Error("add playlist failed", zap.String("url_or_id", a.urlOrID), zap.Error(err))
	c.fail(FallbackMessage)
	return Outcome{Kind: Failed, Message: FallbackMessage, Err: err}
}

func (c *Controller) fail(msg string) {
	c.mu.Lock()
	c.err = msg
	c.mu.Unlock()
	c.notifier.SetError(msg)
}

// release returns the controller to Idle. It runs last on every path.
func (c *Controller) release() {
	c.mu.Lock()
	c.state = Idle
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}
