package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"pawpal/internal/care"
	"pawpal/internal/care/query"
	"pawpal/internal/care/rank"
	"pawpal/internal/care/scheduler"
	"pawpal/internal/eventbus"
	"pawpal/internal/observability/metrics"
	"pawpal/internal/storage"
	logx "pawpal/pkg/logx"
)

var ErrTaskNotFound = errors.New("task not found")

// DefaultWindow applies when neither the owner nor the config sets one.
var DefaultWindow = care.Window{Start: care.At(8, 0), End: care.At(20, 0)}

type Config struct {
	DefaultWindow care.Window
	Location      *time.Location
}

type Deps struct {
	Store   storage.Store
	Bus     eventbus.Bus
	Metrics *metrics.Recorder
	Tracer  trace.Tracer
	Log     logx.Logger
	Now     func() time.Time
}

type Service struct {
	mu  sync.RWMutex
	cfg Config

	store   storage.Store
	bus     eventbus.Bus
	metrics *metrics.Recorder
	tracer  trace.Tracer
	log     logx.Logger
	now     func() time.Time

	locks keyedMutex
}

func New(cfg Config, d Deps) (*Service, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("planning: %w", storage.ErrDisabled)
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("pawpal")
	}
	s := &Service{
		store:   d.Store,
		bus:     d.Bus,
		metrics: d.Metrics,
		tracer:  d.Tracer,
		log:     d.Log.With(logx.String("comp", "planning")),
		now:     d.Now,
	}
	s.Apply(cfg)
	return s, nil
}

// Apply swaps planning defaults; runs already in progress keep the old ones.
func (s *Service) Apply(cfg Config) {
	if cfg.DefaultWindow.IsZero() {
		cfg.DefaultWindow = DefaultWindow
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Today is the current date in the configured time zone.
func (s *Service) Today() care.Date {
	return care.DateOf(s.now().In(s.config().Location))
}

// Result is one generated plan together with the snapshot it was built from.
type Result struct {
	Owner  care.Owner
	Date   care.Date
	Window care.Window
	Plan   scheduler.Plan
	Record storage.PlanRecord
	// Reopened lists recurring tasks moved back to pending because they
	// came due again.
	Reopened []string
}

// Plan builds and stores the plan for ownerID on day.
func (s *Service) Plan(ctx context.Context, ownerID string, day care.Date) (_ *Result, err error) {
	if day.IsZero() {
		day = s.Today()
	}
	ctx, span := s.startSpan(ctx, "planning.Plan", ownerID, attribute.String("date", day.String()))
	defer func() { endSpan(span, err) }()
	started := s.now()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	res, err := s.plan(ctx, ownerID, day)
	took := s.now().Sub(started)
	s.audit(ctx, ownerID, "plan.generate", day.String(), took, err, auditMeta(res))
	if err != nil {
		s.log.Warn("plan failed", logx.String("owner", ownerID), logx.String("date", day.String()), logx.Err(err))
		return nil, err
	}

	p := res.Plan
	s.metrics.PlanGenerated(ctx, ownerID, len(p.Placements), len(p.Rejected), len(p.Conflicts), took)
	s.publish(eventbus.TypePlanGenerated, eventbus.PlanGenerated{
		OwnerID: ownerID, Date: day.String(),
		Placed: len(p.Placements), Rejected: len(p.Rejected), Conflicts: len(p.Conflicts),
	})
	s.log.Info("plan generated",
		logx.String("owner", ownerID),
		logx.String("date", day.String()),
		logx.String("window", res.Window.String()),
		logx.Int("placed", len(p.Placements)),
		logx.Int("rejected", len(p.Rejected)),
		logx.Int("conflicts", len(p.Conflicts)),
		logx.Int("remaining_min", p.RemainingMinutes),
		logx.Duration("took", took),
	)
	return res, nil
}

func (s *Service) plan(ctx context.Context, ownerID string, day care.Date) (*Result, error) {
	o, err := s.store.LoadOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var reopened []string
	for i := range o.Tasks {
		t := &o.Tasks[i]
		if t.Status == care.StatusCompleted && t.Recurrence.IsRecurring() && t.NextDue != nil && !t.NextDue.After(day) {
			t.Status = care.StatusPending
			reopened = append(reopened, t.ID)
		}
	}
	if len(reopened) > 0 {
		if err := s.store.SaveOwner(ctx, o); err != nil {
			return nil, fmt.Errorf("reopen recurring tasks: %w", err)
		}
		s.log.Debug("recurring tasks reopened", logx.String("owner", ownerID), logx.Strings("tasks", reopened))
	}

	window := o.Availability
	if window.IsZero() {
		window = s.config().DefaultWindow
	}
	ranked, err := rank.Rank(query.DueOn(o.Tasks, day))
	if err != nil {
		return nil, err
	}
	plan, err := scheduler.Schedule(ranked, scheduler.FromWindow(window))
	if err != nil {
		return nil, err
	}

	rec := storage.FromPlan(ownerID, day, window, plan, s.now())
	if err := s.store.SavePlan(ctx, rec); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	return &Result{Owner: *o, Date: day, Window: window, Plan: plan, Record: rec, Reopened: reopened}, nil
}

// LastPlan returns the stored plan for ownerID on day.
func (s *Service) LastPlan(ctx context.Context, ownerID string, day care.Date) (*storage.PlanRecord, error) {
	if day.IsZero() {
		day = s.Today()
	}
	return s.store.LoadPlan(ctx, ownerID, day)
}

// Completion is the outcome of Complete.
type Completion struct {
	Task    care.Task
	Message string
	Changed bool // false when the task was already completed
}

// Complete marks taskID done as of day and persists the owner.
func (s *Service) Complete(ctx context.Context, ownerID, taskID string, day care.Date) (_ *Completion, err error) {
	if day.IsZero() {
		day = s.Today()
	}
	ctx, span := s.startSpan(ctx, "planning.Complete", ownerID, attribute.String("task", taskID))
	defer func() { endSpan(span, err) }()
	started := s.now()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	c, err := s.complete(ctx, ownerID, taskID, day)
	var (
		meta map[string]any
		next string
	)
	if c != nil {
		if c.Task.NextDue != nil {
			next = c.Task.NextDue.String()
		}
		meta = map[string]any{"changed": c.Changed, "next_due": next}
	}
	s.audit(ctx, ownerID, "task.complete", taskID, s.now().Sub(started), err, meta)
	if err != nil {
		return nil, err
	}
	if c.Changed {
		s.metrics.TaskCompleted(ctx, c.Task.Recurrence.IsRecurring())
		s.publish(eventbus.TypeTaskCompleted, eventbus.TaskCompleted{OwnerID: ownerID, TaskID: taskID, NextDue: next})
		s.log.Info("task completed", logx.String("owner", ownerID), logx.String("task", taskID), logx.String("next_due", next))
	}
	return c, nil
}

func (s *Service) complete(ctx context.Context, ownerID, taskID string, day care.Date) (*Completion, error) {
	o, err := s.store.LoadOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	i := o.TaskIndex(taskID)
	if i < 0 {
		return nil, fmt.Errorf("task %q: %w", taskID, ErrTaskNotFound)
	}
	t := &o.Tasks[i]
	wasDone := t.Status == care.StatusCompleted
	msg, err := scheduler.MarkComplete(t, day)
	if err != nil {
		return nil, err
	}
	if !wasDone {
		if err := s.store.SaveOwner(ctx, o); err != nil {
			return nil, err
		}
	}
	return &Completion{Task: t.Clone(), Message: msg, Changed: !wasDone}, nil
}

// Tasks returns the owner's tasks matching f, time-sorted.
func (s *Service) Tasks(ctx context.Context, ownerID string, f query.Filter) ([]care.Task, error) {
	o, err := s.store.LoadOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return f.Apply(o.Tasks), nil
}

// Owner loads an owner snapshot.
func (s *Service) Owner(ctx context.Context, ownerID string) (*care.Owner, error) {
	return s.store.LoadOwner(ctx, ownerID)
}

// AddTask appends t to the owner's tasks. An empty id gets a fresh one.
func (s *Service) AddTask(ctx context.Context, ownerID string, t care.Task) (care.Task, error) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = care.NewTaskID()
	}
	if err := t.Validate(); err != nil {
		return care.Task{}, err
	}
	started := s.now()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	err := func() error {
		o, err := s.store.LoadOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if t.PetID != "" {
			if _, ok := o.Pet(t.PetID); !ok && len(o.Pets) > 0 {
				return fmt.Errorf("pet %q: %w", t.PetID, storage.ErrNotFound)
			}
		}
		o.Tasks = append(o.Tasks, t.Clone())
		return s.store.SaveOwner(ctx, o)
	}()
	s.audit(ctx, ownerID, "task.add", t.ID, s.now().Sub(started), err, nil)
	if err != nil {
		return care.Task{}, err
	}
	s.publish(eventbus.TypeTaskAdded, eventbus.TaskAdded{OwnerID: ownerID, TaskID: t.ID})
	return t, nil
}

// SaveOwner replaces a whole owner record, e.g. from an import file.
func (s *Service) SaveOwner(ctx context.Context, o *care.Owner) error {
	if o == nil {
		return errors.New("owner is nil")
	}
	started := s.now()
	unlock := s.locks.Lock(o.ID)
	defer unlock()
	err := s.store.SaveOwner(ctx, o)
	s.audit(ctx, o.ID, "owner.save", o.ID, s.now().Sub(started), err, map[string]any{"tasks": len(o.Tasks)})
	return err
}

func (s *Service) startSpan(ctx context.Context, name, ownerID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("owner", ownerID), attribute.String("actor", ActorFrom(ctx)))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
	}
}

func (s *Service) audit(ctx context.Context, ownerID, action, target string, took time.Duration, err error, meta map[string]any) {
	e := storage.AuditEntry{
		At:      s.now(),
		OwnerID: ownerID,
		Actor:   ActorFrom(ctx),
		Action:  action,
		Target:  target,
		OK:      err == nil,
		TookMS:  took.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if len(meta) > 0 {
		if b, mErr := json.Marshal(meta); mErr == nil {
			e.MetaJSON = string(b)
		}
	}
	// Audit must not fail the operation it describes.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if aerr := s.store.AppendAudit(actx, e); aerr != nil {
		s.log.Warn("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}

func auditMeta(r *Result) map[string]any {
	if r == nil {
		return nil
	}
	return map[string]any{
		"placed":    len(r.Plan.Placements),
		"rejected":  len(r.Plan.Rejected),
		"conflicts": len(r.Plan.Conflicts),
		"reopened":  len(r.Reopened),
	}
}
