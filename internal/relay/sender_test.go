package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "teleecho/internal/transport"
	logx "teleecho/pkg/logx"
)

type call struct {
	method string // "send" or "edit"
	text   string
	at     time.Time
}

// fakeSender records calls and hands out increasing message ids.
type fakeSender struct {
	mu     sync.Mutex
	calls  []call
	nextID int

	sendErr   error
	editErr   error
	panicNext bool
	latency   time.Duration
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string) (kit.MessageRef, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: "send", text: text, at: time.Now()})
	if f.panicNext {
		f.panicNext = false
		f.mu.Unlock()
		panic("transport exploded")
	}
	err := f.sendErr
	f.nextID++
	id := f.nextID
	lat := f.latency
	f.mu.Unlock()

	time.Sleep(lat)
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: id, Text: text}, nil
}

func (f *fakeSender) EditText(_ context.Context, ref kit.MessageRef, text string) (kit.MessageRef, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: "edit", text: text, at: time.Now()})
	err := f.editErr
	f.mu.Unlock()
	if err != nil {
		return kit.MessageRef{}, err
	}
	ref.Text = text
	return ref, nil
}

func (f *fakeSender) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func newTestSender(out kit.Sender) *sender {
	return &sender{
		out:   out,
		to:    kit.ChatTarget{ChatID: 42},
		queue: &queue{},
		sigs:  newSignals(),
		pace:  newPacer(0),
		log:   logx.Nop(),
	}
}

func TestDrainCoalescesQueuedLines(t *testing.T) {
	f := &fakeSender{}
	w := newTestSender(f)
	for _, s := range []Segment{nl("a"), nl("b"), nl("c")} {
		w.queue.push(s)
	}

	w.drain(context.Background())

	calls := f.snapshot()
	if len(calls) != 1 || calls[0].method != "send" || calls[0].text != "a\nb\nc" {
		t.Fatalf("calls = %+v", calls)
	}
	if w.queue.len() != 0 {
		t.Fatalf("queue len = %d", w.queue.len())
	}
	if w.last == nil || w.last.Text != "a\nb\nc" {
		t.Fatalf("last = %+v", w.last)
	}
}

func TestDrainSuppressesEmptyText(t *testing.T) {
	f := &fakeSender{}
	w := newTestSender(f)
	w.queue.push(nl(""))
	w.queue.push(cr(""))
	w.drain(context.Background())
	w.drain(context.Background())

	if n := len(f.snapshot()); n != 0 {
		t.Fatalf("network calls = %d, want 0", n)
	}
	if got := w.stats().Suppressed; got != 2 {
		t.Fatalf("suppressed = %d, want 2", got)
	}
}

func TestOverrideReplacesLastLine(t *testing.T) {
	f := &fakeSender{}
	w := newTestSender(f)
	w.last = &kit.MessageRef{ChatID: 42, MessageID: 5, Text: "x\ny"}

	if !w.override(context.Background(), "z") {
		t.Fatal("override did not dispatch")
	}
	calls := f.snapshot()
	if len(calls) != 1 || calls[0].method != "edit" || calls[0].text != "x\nz" {
		t.Fatalf("calls = %+v", calls)
	}
	if w.last.Text != "x\nz" || w.last.MessageID != 5 {
		t.Fatalf("last = %+v", w.last)
	}
}

func TestOverrideIdenticalTextSkipsNetwork(t *testing.T) {
	f := &fakeSender{}
	w := newTestSender(f)
	w.last = &kit.MessageRef{ChatID: 42, MessageID: 5, Text: "x\ny"}

	w.override(context.Background(), "p")
	if w.override(context.Background(), "p") {
		t.Fatal("second identical override reported a dispatch")
	}
	if n := len(f.snapshot()); n != 1 {
		t.Fatalf("edit calls = %d, want 1", n)
	}

	single := newTestSender(f)
	single.last = &kit.MessageRef{ChatID: 42, MessageID: 6, Text: "p"}
	if single.override(context.Background(), "p") {
		t.Fatal("override with the same text as the whole message dispatched")
	}
}

func TestOverrideWithoutPreviousMessage(t *testing.T) {
	f := &fakeSender{}
	w := newTestSender(f)
	if w.override(context.Background(), "x") {
		t.Fatal("override without a previous message dispatched")
	}
	if n := len(f.snapshot()); n != 0 {
		t.Fatalf("network calls = %d", n)
	}
}

func TestEditFailureKeepsHandle(t *testing.T) {
	f := &fakeSender{editErr: errors.New("message to edit not found")}
	w := newTestSender(f)
	prev := kit.MessageRef{ChatID: 42, MessageID: 5, Text: "x\ny"}
	w.last = &prev

	if !w.override(context.Background(), "z") {
		t.Fatal("failed edit still counts as a dispatch attempt")
	}
	if *w.last != prev {
		t.Fatalf("handle changed after failed edit: %+v", w.last)
	}
	if w.stats().Failed != 1 {
		t.Fatalf("failed = %d", w.stats().Failed)
	}
}

func TestSendFailureKeepsHandleAndContinues(t *testing.T) {
	f := &fakeSender{}
	w := newTestSender(f)
	w.queue.push(nl("first"))
	w.drain(context.Background())
	first := *w.last

	f.mu.Lock()
	f.sendErr = errors.New("network down")
	f.mu.Unlock()
	w.queue.push(nl("lost"))
	w.drain(context.Background())
	if *w.last != first {
		t.Fatalf("handle changed after failed send: %+v", w.last)
	}

	f.mu.Lock()
	f.sendErr = nil
	f.mu.Unlock()
	w.queue.push(nl("third"))
	w.drain(context.Background())
	if w.last.Text != "third" {
		t.Fatalf("worker did not recover, last = %+v", w.last)
	}
	if st := w.stats(); st.Sent != 2 || st.Failed != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	f := &fakeSender{}
	w := newTestSender(f)
	done := make(chan error, 1)
	go func() { done <- w.run(context.Background()) }()

	w.queue.push(nl("hello"))
	w.sigs.send(SignalNewElement)
	w.sigs.send(SignalShutdown)
	w.sigs.send(SignalNewElement)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	calls := f.snapshot()
	if len(calls) != 1 || calls[0].text != "hello" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestReplaceLastLine(t *testing.T) {
	cases := []struct{ prev, line, want string }{
		{"x\ny", "z", "x\nz"},
		{"single", "z", "z"},
		{"", "z", "z"},
		{"a\nb\n", "z", "a\nb\nz"},
	}
	for _, c := range cases {
		if got := replaceLastLine(c.prev, c.line); got != c.want {
			t.Fatalf("replaceLastLine(%q, %q) = %q, want %q", c.prev, c.line, got, c.want)
		}
	}
}
