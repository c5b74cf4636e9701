package channel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/link-coach/internal/protocol"
)

const (
	hostOrigin   = "https://host.example.com"
	widgetOrigin = "https://link-coach.netlify.app"
)

type inbox struct {
	mu   sync.Mutex
	msgs []protocol.Message
	orig []string
}

func (b *inbox) add(m protocol.Message, origin string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, m)
	b.orig = append(b.orig, origin)
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

func (b *inbox) snapshot() []protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Message(nil), b.msgs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newPipe(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	host, widget := NewPipe(hostOrigin, widgetOrigin)
	t.Cleanup(func() {
		_ = host.Close()
		_ = widget.Close()
	})
	return host, widget
}

func TestChannelDeliversFromAllowedOrigin(t *testing.T) {
	t.Parallel()
	hostPort, widgetPort := newPipe(t)

	hostCh := New(hostPort, []string{widgetOrigin})
	widgetCh := New(widgetPort, []string{hostOrigin})

	got := &inbox{}
	unregister := hostCh.Receive(got.add)
	defer unregister()

	if err := widgetCh.Send(context.Background(), protocol.WidgetReady{}, AnyOrigin); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, func() bool { return got.len() == 1 })
	if _, ok := got.snapshot()[0].(protocol.WidgetReady); !ok {
		t.Fatalf("expected WidgetReady, got %T", got.snapshot()[0])
	}
	if got.orig[0] != widgetOrigin {
		t.Fatalf("expected origin %s, got %s", widgetOrigin, got.orig[0])
	}
}

func TestChannelDropsDisallowedOrigin(t *testing.T) {
	t.Parallel()
	evilPort, hostPort := NewPipe("https://evil.example.com", hostOrigin)
	t.Cleanup(func() {
		_ = evilPort.Close()
		_ = hostPort.Close()
	})

	hostCh := New(hostPort, DefaultAllowedOrigins)
	got := &inbox{}
	hostCh.Receive(got.add)

	// A raw listener proves the envelope reached the port before being filtered.
	seen := make(chan struct{}, 2)
	hostPort.Listen(func(Delivery) { seen <- struct{}{} })

	env, _ := protocol.Encode(protocol.WidgetClose{})
	if err := evilPort.Post(context.Background(), env, AnyOrigin); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never reached the port")
	}
	if got.len() != 0 {
		t.Fatalf("expected rejected message to be dropped, got %d", got.len())
	}
}

func TestChannelIgnoresUnknownType(t *testing.T) {
	t.Parallel()
	hostPort, widgetPort := newPipe(t)

	hostCh := New(hostPort, []string{widgetOrigin})
	got := &inbox{}
	hostCh.Receive(got.add)

	ctx := context.Background()
	if err := widgetPort.Post(ctx, protocol.Envelope{Type: "NOT_A_MESSAGE", Data: json.RawMessage(`{}`)}, AnyOrigin); err != nil {
		t.Fatalf("Post unknown: %v", err)
	}
	env, _ := protocol.Encode(protocol.WidgetResize{Height: 480})
	if err := widgetPort.Post(ctx, env, AnyOrigin); err != nil {
		t.Fatalf("Post resize: %v", err)
	}

	waitFor(t, func() bool { return got.len() == 1 })
	if r, ok := got.snapshot()[0].(protocol.WidgetResize); !ok || r.Height != 480 {
		t.Fatalf("expected resize 480, got %#v", got.snapshot()[0])
	}
}

func TestPipeEnforcesTargetOrigin(t *testing.T) {
	t.Parallel()
	hostPort, widgetPort := newPipe(t)

	widgetCh := New(widgetPort, []string{hostOrigin})
	got := &inbox{}
	widgetCh.Receive(got.add)

	hostCh := New(hostPort, nil)
	ctx := context.Background()
	if err := hostCh.Send(ctx, protocol.UpdateUser{Payload: json.RawMessage(`{"a":1}`)}, "https://someone-else.example.com"); err != nil {
		t.Fatalf("Send mismatched: %v", err)
	}
	if err := hostCh.Send(ctx, protocol.WidgetReady{}, widgetOrigin+"/path/ignored"); err != nil {
		t.Fatalf("Send matched: %v", err)
	}

	waitFor(t, func() bool { return got.len() == 1 })
	if _, ok := got.snapshot()[0].(protocol.WidgetReady); !ok {
		t.Fatalf("expected only the matching message, got %T", got.snapshot()[0])
	}
}

func TestPipePreservesOrder(t *testing.T) {
	t.Parallel()
	hostPort, widgetPort := newPipe(t)

	hostCh := New(hostPort, []string{widgetOrigin})
	got := &inbox{}
	hostCh.Receive(got.add)

	widgetCh := New(widgetPort, nil)
	for i := 1; i <= 20; i++ {
		if err := widgetCh.Send(context.Background(), protocol.WidgetResize{Height: float64(i)}, hostOrigin); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	waitFor(t, func() bool { return got.len() == 20 })
	for i, m := range got.snapshot() {
		if h := m.(protocol.WidgetResize).Height; h != float64(i+1) {
			t.Fatalf("message %d out of order: height %v", i, h)
		}
	}
}

func TestPipeLosesMessagesBeforeListener(t *testing.T) {
	t.Parallel()
	hostPort, widgetPort := newPipe(t)

	early := &inbox{}
	New(hostPort, []string{widgetOrigin}).Receive(early.add)

	widgetCh := New(widgetPort, nil)
	ctx := context.Background()
	if err := widgetCh.Send(ctx, protocol.WidgetReady{}, hostOrigin); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, func() bool { return early.len() == 1 })

	late := &inbox{}
	New(hostPort, []string{widgetOrigin}).Receive(late.add)
	if err := widgetCh.Send(ctx, protocol.WidgetClose{}, hostOrigin); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, func() bool { return late.len() == 1 })
	if _, ok := late.snapshot()[0].(protocol.WidgetClose); !ok {
		t.Fatalf("late listener should only see WidgetClose, got %T", late.snapshot()[0])
	}
}

func TestPostAfterCloseFails(t *testing.T) {
	t.Parallel()
	hostPort, widgetPort := newPipe(t)
	_ = widgetPort.Close()

	env, _ := protocol.Encode(protocol.WidgetReady{})
	if err := hostPort.Post(context.Background(), env, AnyOrigin); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOriginOf(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://link-coach.netlify.app":            "https://link-coach.netlify.app",
		"https://link-coach.netlify.app/widget?x=1": "https://link-coach.netlify.app",
		"HTTP://LOCALHOST:5173/":                    "http://localhost:5173",
		"*":                                         "*",
	}
	for in, want := range tests {
		if got := OriginOf(in); got != want {
			t.Errorf("OriginOf(%q) = %q, want %q", in, got, want)
		}
	}
}
