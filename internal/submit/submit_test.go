package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/zarlcorp/zplay/internal/mockbackend"
	"github.com/zarlcorp/zplay/internal/playlist"
)

// fakeCreator records calls and answers from a canned function.
type fakeCreator struct {
	mu    sync.Mutex
	calls []string
	fn    func(urlOrID string) (json.RawMessage, error)
}

func (f *fakeCreator) Create(_ context.Context, urlOrID string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, urlOrID)
	f.mu.Unlock()
	return f.fn(urlOrID)
}

func (f *fakeCreator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func succeed() *fakeCreator {
	return &fakeCreator{fn: func(string) (json.RawMessage, error) {
		return json.RawMessage(`{"id":1}`), nil
	}}
}

// recorder is a Notifier that keeps every event in order.
type recorder struct {
	mu     sync.Mutex
	events []string
	added  int
	errMsg string
}

func (r *recorder) PlaylistAdded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added++
	r.events = append(r.events, "added")
}

func (r *recorder) SetError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errMsg = msg
	r.events = append(r.events, "error:"+msg)
}

func TestWhitespaceIsNoop(t *testing.T) {
	for _, in := range []string{"", "  ", "\t\n", " \r\n "} {
		fc := succeed()
		rec := &recorder{}
		c := New(fc, rec)
		c.SetValue(in)

		var notified int
		c.Subscribe(func(Snapshot) { notified++ })

		if _, ok := c.Submit(context.Background()); ok {
			t.Errorf("%q: submit should be a no-op", in)
		}
		if fc.callCount() != 0 {
			t.Errorf("%q: calls = %d, want 0", in, fc.callCount())
		}
		if len(rec.events) != 0 {
			t.Errorf("%q: notifier events = %v, want none", in, rec.events)
		}
		if notified != 0 {
			t.Errorf("%q: state changed %d times, want 0", in, notified)
		}
		if c.Raw() != in {
			t.Errorf("%q: raw = %q, want unchanged", in, c.Raw())
		}
	}
}

func TestDoubleSubmitIssuesOneCall(t *testing.T) {
	release := make(chan struct{})
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`{}`), nil
	}}
	c := New(fc, &recorder{})
	c.SetValue("abc123")

	first, ok := c.Begin()
	if !ok {
		t.Fatal("first submit should be accepted")
	}
	if c.State() != Submitting {
		t.Fatalf("state = %v, want submitting", c.State())
	}

	if _, ok := c.Begin(); ok {
		t.Fatal("second submit while in flight should be a no-op")
	}

	done := make(chan Outcome)
	go func() { done <- first.Run(context.Background()) }()

	// a synchronous Submit during the flight is also rejected
	if _, ok := c.Submit(context.Background()); ok {
		t.Fatal("submit while in flight should be a no-op")
	}

	close(release)
	<-done

	if fc.callCount() != 1 {
		t.Errorf("calls = %d, want 1", fc.callCount())
	}
}

func TestConcurrentSubmitsIssueOneCall(t *testing.T) {
	release := make(chan struct{})
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`{}`), nil
	}}
	c := New(fc, nil)
	c.SetValue("abc123")

	var wg sync.WaitGroup
	accepted := make(chan *Attempt, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a, ok := c.Begin(); ok {
				accepted <- a
			}
		}()
	}
	wg.Wait()
	close(accepted)

	var attempts []*Attempt
	for a := range accepted {
		attempts = append(attempts, a)
	}
	if len(attempts) != 1 {
		t.Fatalf("accepted = %d, want 1", len(attempts))
	}

	close(release)
	attempts[0].Run(context.Background())

	if fc.callCount() != 1 {
		t.Errorf("calls = %d, want 1", fc.callCount())
	}
}

func TestSuccess(t *testing.T) {
	fc := succeed()
	rec := &recorder{}
	c := New(fc, rec)
	c.SetValue("  abc123  ")

	out, ok := c.Submit(context.Background())
	if !ok {
		t.Fatal("submit should be accepted")
	}

	if out.Kind != Added {
		t.Errorf("kind = %v, want added", out.Kind)
	}
	if fc.calls[0] != "abc123" {
		t.Errorf("sent %q, want trimmed %q", fc.calls[0], "abc123")
	}
	if rec.added != 1 {
		t.Errorf("added callbacks = %d, want 1", rec.added)
	}
	if c.Raw() != "" {
		t.Errorf("value = %q, want empty", c.Raw())
	}
	if c.Err() != "" || rec.errMsg != "" {
		t.Errorf("error = %q / %q, want empty", c.Err(), rec.errMsg)
	}
	if c.State() != Idle {
		t.Errorf("state = %v, want idle", c.State())
	}

	want := []string{"error:", "added"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestRejection(t *testing.T) {
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) {
		return nil, fmt.Errorf("create playlist: %w", &playlist.RejectionError{StatusCode: 400, Message: "playlist not found"})
	}}
	rec := &recorder{}
	c := New(fc, rec)
	c.SetValue("bad-url")

	out, _ := c.Submit(context.Background())

	if out.Kind != Rejected {
		t.Errorf("kind = %v, want rejected", out.Kind)
	}
	if rec.errMsg != "playlist not found" || c.Err() != "playlist not found" {
		t.Errorf("error = %q / %q, want %q", rec.errMsg, c.Err(), "playlist not found")
	}
	if c.Raw() != "bad-url" {
		t.Errorf("value = %q, want unchanged", c.Raw())
	}
	if rec.added != 0 {
		t.Errorf("added callbacks = %d, want 0", rec.added)
	}
	if c.State() != Idle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestRejectionWithoutMessageFallsBack(t *testing.T) {
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) {
		return nil, &playlist.RejectionError{StatusCode: 500}
	}}
	rec := &recorder{}
	c := New(fc, rec)
	c.SetValue("abc")

	out, _ := c.Submit(context.Background())

	if out.Kind != Rejected {
		t.Errorf("kind = %v, want rejected", out.Kind)
	}
	if rec.errMsg != FallbackMessage {
		t.Errorf("error = %q, want %q", rec.errMsg, FallbackMessage)
	}
}

func TestTransportFailure(t *testing.T) {
	for _, err := range []error{
		errors.New("dial tcp: connection refused"),
		fmt.Errorf("create playlist: %w", playlist.ErrMalformedResponse),
	} {
		fc := &fakeCreator{fn: func(string) (json.RawMessage, error) { return nil, err }}
		rec := &recorder{}
		c := New(fc, rec)
		c.SetValue("abc123")

		out, _ := c.Submit(context.Background())

		if out.Kind != Failed {
			t.Errorf("%v: kind = %v, want failed", err, out.Kind)
		}
		if !errors.Is(out.Err, err) {
			t.Errorf("%v: outcome err = %v", err, out.Err)
		}
		if rec.errMsg != FallbackMessage {
			t.Errorf("%v: error = %q, want %q", err, rec.errMsg, FallbackMessage)
		}
		if c.State() != Idle {
			t.Errorf("%v: state = %v, want idle", err, c.State())
		}
		if c.Raw() != "abc123" {
			t.Errorf("%v: value = %q, want unchanged", err, c.Raw())
		}
	}
}

func TestPanicReleasesState(t *testing.T) {
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) { panic("boom") }}
	rec := &recorder{}
	c := New(fc, rec)
	c.SetValue("abc123")

	out, ok := c.Submit(context.Background())
	if !ok {
		t.Fatal("submit should be accepted")
	}

	if out.Kind != Failed {
		t.Errorf("kind = %v, want failed", out.Kind)
	}
	if rec.errMsg != FallbackMessage {
		t.Errorf("error = %q, want %q", rec.errMsg, FallbackMessage)
	}
	if c.State() != Idle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestPanickingNotifierReleasesState(t *testing.T) {
	var panicked bool
	notifier := NotifierFuncs{Error: func(msg string) {
		if msg == "" && !panicked {
			panicked = true
			panic("host")
		}
	}}
	fc := succeed()
	c := New(fc, notifier)
	c.SetValue("abc123")

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should reach the caller")
			}
		}()
		c.Begin()
	}()

	if c.State() != Idle {
		t.Fatalf("state = %v, want idle", c.State())
	}
	if fc.callCount() != 0 {
		t.Errorf("calls = %d, want 0", fc.callCount())
	}

	out, ok := c.Submit(context.Background())
	if !ok {
		t.Fatal("control should accept a new submission")
	}
	if out.Kind != Added {
		t.Errorf("kind = %v, want added", out.Kind)
	}
}

func TestReusableAfterEveryOutcome(t *testing.T) {
	results := []error{
		nil,
		&playlist.RejectionError{StatusCode: 400, Message: "nope"},
		errors.New("network down"),
	}

	i := 0
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) {
		err := results[i%len(results)]
		i++
		if err != nil {
			return nil, err
		}
		return json.RawMessage(`{}`), nil
	}}
	c := New(fc, &recorder{})

	for n := range 6 {
		c.SetValue("abc123")
		if _, ok := c.Submit(context.Background()); !ok {
			t.Fatalf("submit %d should be accepted", n)
		}
		if c.State() != Idle {
			t.Fatalf("submit %d: state = %v, want idle", n, c.State())
		}
	}

	if fc.callCount() != 6 {
		t.Errorf("calls = %d, want 6", fc.callCount())
	}
}

func TestErrorClearedOnNextAttempt(t *testing.T) {
	fail := true
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) {
		if fail {
			return nil, &playlist.RejectionError{StatusCode: 400, Message: "invalid url"}
		}
		return json.RawMessage(`{}`), nil
	}}
	rec := &recorder{}
	c := New(fc, rec)
	c.SetValue("bad-url")
	c.Submit(context.Background())

	fail = false
	a, ok := c.Begin()
	if !ok {
		t.Fatal("second submit should be accepted")
	}
	if c.Err() != "" || rec.errMsg != "" {
		t.Errorf("error should be cleared at start, got %q / %q", c.Err(), rec.errMsg)
	}
	a.Run(context.Background())
}

func TestEditsAcceptedWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	fc := &fakeCreator{fn: func(string) (json.RawMessage, error) {
		<-release
		return nil, errors.New("down")
	}}
	c := New(fc, nil)
	c.SetValue("first")

	a, _ := c.Begin()
	c.SetValue("second")
	if c.Raw() != "second" {
		t.Errorf("value = %q, want edit buffered", c.Raw())
	}

	close(release)
	a.Run(context.Background())

	if fc.calls[0] != "first" {
		t.Errorf("sent %q, want value at submit time", fc.calls[0])
	}
	if c.Raw() != "second" {
		t.Errorf("value = %q, want %q", c.Raw(), "second")
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	c := New(succeed(), nil)

	var states []State
	cancel := c.Subscribe(func(s Snapshot) { states = append(states, s.State) })

	c.SetValue("abc123")
	c.Submit(context.Background())

	want := []State{Idle, Submitting, Idle}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}

	cancel()
	c.SetValue("more")
	if len(states) != len(want) {
		t.Error("cancelled subscriber should not be called")
	}
}

func TestSnapshotCanSubmit(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"empty", Snapshot{}, false},
		{"spaces", Snapshot{Value: "  "}, false},
		{"idle", Snapshot{Value: "abc"}, true},
		{"submitting", Snapshot{Value: "abc", State: Submitting}, false},
	}

	for _, tt := range tests {
		if got := tt.snap.CanSubmit(); got != tt.want {
			t.Errorf("%s: CanSubmit() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAgainstMockBackend(t *testing.T) {
	backend := mockbackend.New(mockbackend.WithRejector(func(id string) string {
		if id == "bad-url" {
			return "invalid url"
		}
		return ""
	}))
	srv := httptest.NewServer(backend.Router())
	defer srv.Close()

	rec := &recorder{}
	c := New(playlist.NewClient(srv.URL), rec)

	c.SetValue("abc123")
	out, _ := c.Submit(context.Background())
	if out.Kind != Added || rec.added != 1 || c.Raw() != "" {
		t.Errorf("abc123: kind=%v added=%d value=%q", out.Kind, rec.added, c.Raw())
	}

	c.SetValue("bad-url")
	out, _ = c.Submit(context.Background())
	if out.Kind != Rejected || c.Err() != "invalid url" || c.Raw() != "bad-url" {
		t.Errorf("bad-url: kind=%v err=%q value=%q", out.Kind, c.Err(), c.Raw())
	}

	// duplicate of an existing playlist
	c.SetValue("abc123")
	c.Submit(context.Background())
	if c.Err() != "Playlist already exists" {
		t.Errorf("duplicate: err = %q", c.Err())
	}
}

func TestAgainstUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := &recorder{}
	c := New(playlist.NewClient(url), rec)
	c.SetValue("abc123")

	out, _ := c.Submit(context.Background())
	if out.Kind != Failed {
		t.Errorf("kind = %v, want failed", out.Kind)
	}
	if c.Err() != FallbackMessage {
		t.Errorf("err = %q, want %q", c.Err(), FallbackMessage)
	}
	if c.State() != Idle {
		t.Errorf("state = %v, want idle", c.State())
	}
}
