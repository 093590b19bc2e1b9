package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	rtsup "pawpal/internal/runtime/supervisor"
	"pawpal/internal/transport"
	logx "pawpal/pkg/logx"
)

const defaultCommandTimeout = 15 * time.Second

// Request is one parsed chat command.
type Request struct {
	Msg     transport.Message
	Command string
	Args    []string
	// OwnerID is the owner mapped to the chat; empty when the chat is unknown.
	OwnerID string
	ReqID   string
	Logger  logx.Logger
}

// HandlerFunc returns the reply text. An error is logged and shown to the user.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	// NeedsOwner rejects chats that are not mapped to an owner.
	NeedsOwner bool
	Timeout    time.Duration
	Handle     HandlerFunc
}

// OwnerResolver maps a chat to the owner who uses it.
type OwnerResolver func(chatID int64) (string, bool)

// Router parses slash commands and runs them on a small worker pool.
type Router struct {
	mu    sync.RWMutex
	cmds  map[string]*Command
	alias map[string]*Command
	order []string

	log     logx.Logger
	sender  transport.Sender
	resolve OwnerResolver

	jobs    chan func()
	workers int
}

func NewRouter(log logx.Logger, sender transport.Sender, resolve OwnerResolver) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if resolve == nil {
		resolve = func(int64) (string, bool) { return "", false }
	}
	return &Router{
		cmds:    map[string]*Command{},
		alias:   map[string]*Command{},
		log:     log.With(logx.String("comp", "commands")),
		sender:  sender,
		resolve: resolve,
		jobs:    make(chan func(), 64),
		workers: 2,
	}
}

// Register adds commands; a later registration with the same name wins.
func (r *Router) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range cmds {
		c := cmds[i]
		name := strings.ToLower(c.Name)
		if _, exists := r.cmds[name]; !exists {
			r.order = append(r.order, name)
		}
		r.cmds[name] = &c
		for _, a := range c.Aliases {
			r.alias[strings.ToLower(a)] = &c
		}
	}
}

func (r *Router) lookup(word string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.cmds[word]; ok {
		return c, true
	}
	c, ok := r.alias[word]
	return c, ok
}

// Commands returns registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.cmds[name])
	}
	return out
}

// MenuCommands is the command list published to the chat client.
func (r *Router) MenuCommands() []transport.BotCommand {
	cmds := r.Commands()
	out := make([]transport.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// Parse splits "/cmd@bot a b" into ("cmd", [a b]). ok is false for plain text.
func Parse(text string) (cmd string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return strings.ToLower(word), parts[1:], true
}

// Handle routes one message synchronously and sends the reply.
func (r *Router) Handle(ctx context.Context, msg transport.Message) {
	word, args, ok := Parse(msg.Text)
	if !ok {
		return
	}
	to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	cmd, ok := r.lookup(word)
	if !ok {
		r.reply(ctx, to, "Unknown command. Try /help")
		return
	}
	req := &Request{
		Msg:     msg,
		Command: cmd.Name,
		Args:    args,
		ReqID:   uuid.NewString()[:8],
	}
	req.OwnerID, _ = r.resolve(msg.ChatID)
	req.Logger = r.log.With(logx.String("req_id", req.ReqID), logx.String("cmd", cmd.Name))
	if cmd.NeedsOwner && req.OwnerID == "" {
		r.reply(ctx, to, "This chat is not linked to an owner.")
		return
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	h := Chain(cmd.Handle, mwPanicRecover(r.log), mwRequestLog(r.log), mwTimeout(timeout))
	text, err := h(ctx, req)
	if err != nil {
		text = "Error: " + err.Error()
	}
	if strings.TrimSpace(text) != "" {
		r.reply(ctx, to, text)
	}
}

func (r *Router) reply(ctx context.Context, to transport.ChatTarget, text string) {
	if r.sender == nil {
		return
	}
	if _, err := r.sender.SendText(ctx, to, text, &transport.SendOptions{DisablePreview: true}); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
	}
}

// DispatchLoop handles messages from in until ctx ends or in closes.
func (r *Router) DispatchLoop(ctx context.Context, in <-chan transport.Message) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log))
	for i := 0; i < r.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		}, 200*time.Millisecond, 5*time.Second)
	}
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers))
	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			job := func() { r.Handle(ctx, msg) }
			select {
			case r.jobs <- job:
			default:
				r.log.Warn("command queue full; dropping", logx.Int64("chat_id", msg.ChatID))
				r.reply(ctx, transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, "Busy, try again in a moment.")
			}
		}
	}
}

func mwTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (string, error) {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func mwPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (text string, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					l := log
					if !req.Logger.IsZero() {
						l = req.Logger
					}
					l.Error("panic recovered", logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("internal error")
				}
			}()
			return next(ctx, req)
		}
	}
}

func mwRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (string, error) {
			start := time.Now()
			l := log
			if !req.Logger.IsZero() {
				l = req.Logger
			}
			text, err := next(ctx, req)
			d := time.Since(start)
			fields := []logx.Field{
				logx.Int64("chat_id", req.Msg.ChatID),
				logx.Int64("from_id", req.Msg.FromID),
				logx.String("owner", req.OwnerID),
				logx.Duration("dur", d),
			}
			if err != nil {
				l.Warn("command failed", append(fields, logx.Err(err))...)
			} else if d >= 750*time.Millisecond {
				l.Info("command ok", fields...)
			} else {
				l.Debug("command ok", fields...)
			}
			return text, err
		}
	}
}
