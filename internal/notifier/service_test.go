package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pawpal/internal/eventbus"
	"pawpal/internal/storage"
	"pawpal/internal/transport"
	logx "pawpal/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	fails int
	sent  []string
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return transport.MessageRef{}, errors.New("temporary")
	}
	f.sent = append(f.sent, text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func fastConfig() Config {
	return Config{Enabled: true, Workers: 1, QueueSize: 8, RatePerSec: 100, RetryMax: 2,
		RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond, DedupWindow: time.Minute}
}

func stop(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestNotifyDeliversWithRetry(t *testing.T) {
	t.Parallel()
	snd := &fakeSender{fails: 2}
	bus := eventbus.New()
	sent, unsub := bus.Subscribe(4, EventSent)
	defer unsub()

	s := New(fastConfig(), snd, logx.Nop(), bus, nil)
	s.Start(context.Background())
	if err := s.Notify(context.Background(), transport.Notification{Channel: "daily", Target: transport.ChatTarget{ChatID: 1}, Text: "plan"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no sent event")
	}
	stop(t, s)
	if got := snd.texts(); len(got) != 1 || got[0] != "plan" {
		t.Fatalf("sent = %v", got)
	}
	if len(s.History()) != 1 {
		t.Fatalf("history = %d", len(s.History()))
	}
}

func TestNotifyDedupPersistsAcrossServices(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()

	n := transport.Notification{Channel: "daily", Key: "o1:2026-03-02", Target: transport.ChatTarget{ChatID: 1}, Text: "plan"}

	snd := &fakeSender{}
	first := New(fastConfig(), snd, logx.Nop(), nil, st)
	first.Start(context.Background())
	_ = first.Notify(context.Background(), n)
	_ = first.Notify(context.Background(), n)
	stop(t, first)

	second := New(fastConfig(), snd, logx.Nop(), nil, st)
	second.Start(context.Background())
	_ = second.Notify(context.Background(), n)
	stop(t, second)

	if got := snd.texts(); len(got) != 1 {
		t.Fatalf("sent %d messages, want 1 (deduped)", len(got))
	}
}

func TestNotifyStates(t *testing.T) {
	t.Parallel()
	n := transport.Notification{Channel: "x", Text: "hi"}

	disabled := New(Config{}, &fakeSender{}, logx.Nop(), nil, nil)
	if err := disabled.Notify(context.Background(), n); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled Notify = %v", err)
	}

	notStarted := New(fastConfig(), &fakeSender{}, logx.Nop(), nil, nil)
	if err := notStarted.Notify(context.Background(), n); !errors.Is(err, ErrStopped) {
		t.Fatalf("unstarted Notify = %v", err)
	}
}

func TestRetryDelayCapped(t *testing.T) {
	t.Parallel()
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}.withDefaults()
	for attempt := 1; attempt < 10; attempt++ {
		if d := retryDelay(cfg, attempt); d <= 0 || d > time.Second {
			t.Fatalf("retryDelay(%d) = %v", attempt, d)
		}
	}
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s event", what)
	}
}

func TestNotifyRetriesKeyAfterFailedDelivery(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()

	bus := eventbus.New()
	failed, unsubFailed := bus.Subscribe(4, EventFailed)
	defer unsubFailed()
	sent, unsubSent := bus.Subscribe(4, EventSent)
	defer unsubSent()

	cfg := fastConfig()
	cfg.RetryMax = 0
	snd := &fakeSender{fails: 1}
	s := New(cfg, snd, logx.Nop(), bus, st)
	s.Start(context.Background())
	defer stop(t, s)

	n := transport.Notification{Channel: "daily", Key: "o1:2026-03-10", Target: transport.ChatTarget{ChatID: 1}, Text: "plan"}
	if err := s.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitEvent(t, failed, "failed")
	if _, ok, _ := st.GetDedup(context.Background(), "daily:o1:2026-03-10"); ok {
		t.Fatalf("failed delivery was recorded as sent")
	}

	if err := s.Notify(context.Background(), n); err != nil {
		t.Fatalf("second Notify: %v", err)
	}
	waitEvent(t, sent, "sent")
	if got := snd.texts(); len(got) != 1 || got[0] != "plan" {
		t.Fatalf("sent = %v", got)
	}
	if _, ok, err := st.GetDedup(context.Background(), "daily:o1:2026-03-10"); err != nil || !ok {
		t.Fatalf("delivered key not persisted: ok=%v err=%v", ok, err)
	}
}

type gatedSender struct {
	started chan struct{}
	gate    chan struct{}
	fakeSender
}

func (g *gatedSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.gate
	return g.fakeSender.SendText(ctx, to, text, opt)
}

func TestNotifyQueueFullReleasesKey(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	sent, unsub := bus.Subscribe(8, EventSent)
	defer unsub()

	cfg := fastConfig()
	cfg.QueueSize = 1
	snd := &gatedSender{started: make(chan struct{}, 1), gate: make(chan struct{})}
	s := New(cfg, snd, logx.Nop(), bus, nil)
	s.Start(context.Background())
	defer stop(t, s)

	note := func(key string) transport.Notification {
		return transport.Notification{Channel: "daily", Key: key, Target: transport.ChatTarget{ChatID: 1}, Text: key}
	}
	if err := s.Notify(context.Background(), note("a")); err != nil {
		t.Fatalf("Notify a: %v", err)
	}
	<-snd.started
	if err := s.Notify(context.Background(), note("b")); err != nil {
		t.Fatalf("Notify b: %v", err)
	}
	if err := s.Notify(context.Background(), note("c")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Notify c = %v, want ErrQueueFull", err)
	}

	close(snd.gate)
	waitEvent(t, sent, "sent a")
	waitEvent(t, sent, "sent b")
	if err := s.Notify(context.Background(), note("c")); err != nil {
		t.Fatalf("Notify c after drain: %v", err)
	}
	waitEvent(t, sent, "sent c")
	if got := snd.texts(); len(got) != 3 || got[2] != "c" {
		t.Fatalf("sent = %v", got)
	}
}
