package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pawpal/internal/eventbus"
	rtsup "pawpal/internal/runtime/supervisor"
	"pawpal/internal/storage"
	"pawpal/internal/transport"
	logx "pawpal/pkg/logx"
)

const historySize = 100

type job struct {
	n     transport.Notification
	key   string
	until time.Time // zero when dedup is off
}

// Service is safe for concurrent use. Bus and store may be nil.
type Service struct {
	mu        sync.Mutex
	cfg       Config
	limiter   *rate.Limiter
	queue     chan job
	sup       *rtsup.Supervisor
	accepting bool
	inflight  sync.WaitGroup

	log    logx.Logger
	sender transport.Sender
	bus    eventbus.Bus
	store  storage.Store

	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender transport.Sender, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log.With(logx.String("comp", "notifier")),
		sender: sender,
		bus:    bus,
		store:  store,
		dedup:  map[string]time.Time{},
	}
	s.Apply(cfg)
	return s
}

// Apply updates limits. Worker and queue sizes take effect on next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	// Burst equals the per-second rate so short spikes pass.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Start launches the workers. Calling it on a running or disabled service
// does nothing.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil || !s.cfg.Enabled {
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	q := s.queue
	for i := 0; i < s.cfg.Workers; i++ {
		s.sup.Go0(fmt.Sprintf("worker.%d", i), func(c context.Context) { s.work(c, q) })
	}
	s.log.Debug("notifier started", logx.Int("workers", s.cfg.Workers), logx.Int("queue", s.cfg.QueueSize))
}

// Stop refuses new messages and drains the queue until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.queue, s.sup = nil, nil
	s.mu.Unlock()

	s.inflight.Wait()
	close(q)
	if err := sup.Wait(ctx); err != nil {
		sup.Cancel()
		s.log.Warn("notifier drain incomplete", logx.Err(err), logx.Int("pending", len(q)))
	}
}

// Notify queues n. A duplicate inside the dedup window is accepted and
// silently skipped. The dedup mark is only persisted once a send succeeds, so
// a failed or dropped notification can be retried with the same key.
func (s *Service) Notify(ctx context.Context, n transport.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	q, window := s.queue, s.cfg.DedupWindow
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	j := job{n: n, key: dedupKey(n)}
	if window > 0 {
		until, ok := s.dedupReserve(ctx, j.key, window)
		if !ok {
			s.publish(EventDeduped, n, j.key, nil)
			return nil
		}
		j.until = until
	}
	select {
	case q <- j:
		s.publish(EventQueued, n, j.key, nil)
		return nil
	default:
		s.dedupRelease(j)
		s.publish(EventDropped, n, j.key, ErrQueueFull)
		return ErrQueueFull
	}
}

// History returns recently delivered messages, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) work(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.send(ctx, j)
		}
	}
}

func (s *Service) send(ctx context.Context, j job) {
	s.mu.Lock()
	cfg, lim := s.cfg, s.limiter
	s.mu.Unlock()
	if s.sender == nil || j.n.Text == "" {
		s.dedupRelease(j)
		return
	}

	attempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			s.dedupRelease(j)
			return
		}
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := s.sender.SendText(cctx, j.n.Target, j.n.Text, j.n.Options)
		cancel()
		if err == nil {
			s.remember(j.n.Text)
			s.dedupCommit(ctx, j)
			s.publish(EventSent, j.n, j.key, nil)
			return
		}
		lastErr = err
		s.log.Debug("send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))
		if attempt == attempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			s.dedupRelease(j)
			return
		case <-t.C:
		}
	}
	s.dedupRelease(j)
	s.log.Warn("notification failed", logx.Err(lastErr), logx.String("channel", j.n.Channel), logx.Int64("chat_id", j.n.Target.ChatID))
	s.publish(EventFailed, j.n, j.key, lastErr)
}

func (s *Service) remember(text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Text: text})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, n transport.Notification, key string, err error) {
	if s.bus == nil {
		return
	}
	e := Event{Channel: n.Channel, ChatID: n.Target.ChatID, Key: key, At: time.Now()}
	if err != nil {
		e.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: e.At, Data: e})
}

// dedupKey is n.Key when set, otherwise a hash of channel, target and text.
func dedupKey(n transport.Notification) string {
	if n.Key != "" {
		return n.Channel + ":" + n.Key
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d:%d|", n.Channel, n.Target.ChatID, n.Target.ThreadID)
	_, _ = h.Write([]byte(n.Text))
	return fmt.Sprintf("%s:%x", n.Channel, h.Sum64())
}

// dedupReserve claims key in memory for window unless it is already claimed
// here or recorded as delivered in the store.
func (s *Service) dedupReserve(ctx context.Context, key string, window time.Duration) (time.Time, bool) {
	now := time.Now()
	s.dmu.Lock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		s.dmu.Unlock()
		return time.Time{}, false
	}
	s.dmu.Unlock()

	if s.store != nil {
		cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		until, ok, err := s.store.GetDedup(cctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return time.Time{}, false
		}
	}

	until := now.Add(window)
	s.dmu.Lock()
	defer s.dmu.Unlock()
	for k, u := range s.dedup {
		if !now.Before(u) {
			delete(s.dedup, k)
		}
	}
	// Another caller may have claimed the key while the store was consulted.
	if u, ok := s.dedup[key]; ok && now.Before(u) {
		return time.Time{}, false
	}
	s.dedup[key] = until
	return until, true
}

// dedupRelease drops the claim held by j so the same key can be sent again.
func (s *Service) dedupRelease(j job) {
	if j.until.IsZero() {
		return
	}
	s.dmu.Lock()
	if u, ok := s.dedup[j.key]; ok && u.Equal(j.until) {
		delete(s.dedup, j.key)
	}
	s.dmu.Unlock()
}

// dedupCommit persists the claim of a delivered job.
func (s *Service) dedupCommit(ctx context.Context, j job) {
	if j.until.IsZero() || s.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 250*time.Millisecond)
	defer cancel()
	if err := s.store.PutDedup(cctx, j.key, j.until); err != nil {
		s.log.Debug("dedup persist failed", logx.Err(err))
	}
}

// retryDelay is base * 2^(attempt-1), capped, with 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(d, cfg.RetryMaxDelay)
}
