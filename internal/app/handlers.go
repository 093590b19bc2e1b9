package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pawpal/internal/care"
	"pawpal/internal/care/query"
	"pawpal/internal/services/planning"
)

// Planner is the part of planning.Service the chat and CLI surfaces use.
type Planner interface {
	Plan(ctx context.Context, ownerID string, day care.Date) (*planning.Result, error)
	Complete(ctx context.Context, ownerID, taskID string, day care.Date) (*planning.Completion, error)
	Tasks(ctx context.Context, ownerID string, f query.Filter) ([]care.Task, error)
	AddTask(ctx context.Context, ownerID string, t care.Task) (care.Task, error)
	Owner(ctx context.Context, ownerID string) (*care.Owner, error)
	Today() care.Date
}

// plannerCommands builds the chat command set over p.
func plannerCommands(p Planner, r *Router) []Command {
	return []Command{
		{
			Name: "plan", Usage: "/plan [today|tomorrow|YYYY-MM-DD]",
			Description: "Build the care plan for a day",
			NeedsOwner:  true,
			Handle: func(ctx context.Context, req *Request) (string, error) {
				day, err := ParseDay(firstArg(req.Args), p.Today())
				if err != nil {
					return "", err
				}
				res, err := p.Plan(planning.WithActor(ctx, actorOf(req)), req.OwnerID, day)
				if err != nil {
					return "", err
				}
				return planning.Render(res), nil
			},
		},
		{
			Name: "done", Aliases: []string{"complete"}, Usage: "/done <task_id> [YYYY-MM-DD]",
			Description: "Mark a task completed",
			NeedsOwner:  true,
			Handle: func(ctx context.Context, req *Request) (string, error) {
				if len(req.Args) == 0 {
					return "Usage: /done <task_id> [YYYY-MM-DD]", nil
				}
				day, err := ParseDay(argAt(req.Args, 1), p.Today())
				if err != nil {
					return "", err
				}
				c, err := p.Complete(planning.WithActor(ctx, actorOf(req)), req.OwnerID, req.Args[0], day)
				if err != nil {
					return "", err
				}
				return c.Message, nil
			},
		},
		{
			Name: "tasks", Usage: "/tasks [pet_id] [pending|in_progress|completed] [HH:MM-HH:MM]",
			Description: "List tasks, optionally by pet and status",
			NeedsOwner:  true,
			Handle: func(ctx context.Context, req *Request) (string, error) {
				f, err := ParseFilter(req.Args)
				if err != nil {
					return "", err
				}
				o, err := p.Owner(ctx, req.OwnerID)
				if err != nil {
					return "", err
				}
				return FormatTasks(*o, f.Apply(o.Tasks)), nil
			},
		},
		{
			Name: "add", Usage: "/add <pet_id> <minutes> <priority> <name...> [@HH:MM] [+daily|+every_other_day|+weekly:mon,thu] [!med] [^morning|^evening]",
			Description: "Add a care task",
			NeedsOwner:  true,
			Handle: func(ctx context.Context, req *Request) (string, error) {
				t, err := ParseTaskArgs(req.Args)
				if err != nil {
					return "", err
				}
				t, err = p.AddTask(planning.WithActor(ctx, actorOf(req)), req.OwnerID, t)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Added %s (%s).", t.Name, t.ID), nil
			},
		},
		{
			Name: "help", Aliases: []string{"start"}, Usage: "/help",
			Description: "Show commands",
			Handle: func(ctx context.Context, req *Request) (string, error) {
				return helpText(r), nil
			},
		},
	}
}

func helpText(r *Router) string {
	var b strings.Builder
	b.WriteString("PawPal commands:\n")
	for _, c := range r.Commands() {
		fmt.Fprintf(&b, "%s\n  %s\n", c.Usage, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func actorOf(req *Request) string {
	return "telegram:" + strconv.FormatInt(req.Msg.ChatID, 10)
}

func firstArg(args []string) string { return argAt(args, 0) }

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// ParseDay accepts "", "today", "tomorrow" or YYYY-MM-DD.
func ParseDay(raw string, today care.Date) (care.Date, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	}
	return care.ParseDate(raw)
}

// ParseFilter reads "[pet_id] [status] [HH:MM-HH:MM]". A known status word is
// taken as the status wherever it appears; anything with a colon is a range.
func ParseFilter(args []string) (query.Filter, error) {
	var f query.Filter
	for _, a := range args {
		if st, err := care.ParseStatus(a); err == nil && st != "" {
			f.Status = st
			continue
		}
		if strings.Contains(a, ":") {
			w, err := care.ParseWindow(a)
			if err != nil {
				return f, err
			}
			f.From, f.To = &w.Start, &w.End
			continue
		}
		if f.PetID != "" {
			return f, fmt.Errorf("unexpected argument %q", a)
		}
		f.PetID = a
	}
	return f, nil
}

// ParseTaskArgs builds a task from the /add argument form.
func ParseTaskArgs(args []string) (care.Task, error) {
	if len(args) < 4 {
		return care.Task{}, errors.New("usage: /add <pet_id> <minutes> <priority> <name...>")
	}
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return care.Task{}, fmt.Errorf("minutes: %q is not a number", args[1])
	}
	prio, err := care.ParsePriority(args[2])
	if err != nil {
		return care.Task{}, err
	}
	t := care.Task{PetID: args[0], DurationMinutes: minutes, Priority: prio}

	var name []string
	for _, a := range args[3:] {
		switch {
		case strings.HasPrefix(a, "@") && len(a) > 1:
			c, err := care.ParseClock(a[1:])
			if err != nil {
				return care.Task{}, err
			}
			t.ScheduledTime = &c
		case strings.HasPrefix(a, "+") && len(a) > 1:
			rec, err := care.ParseRecurrence(a[1:])
			if err != nil {
				return care.Task{}, err
			}
			t.Recurrence = rec
		case strings.HasPrefix(a, "^") && len(a) > 1:
			pref, err := care.ParseTimePreference(a[1:])
			if err != nil {
				return care.Task{}, err
			}
			t.TimePreference = pref
		case strings.EqualFold(a, "!med"):
			t.IsMedication = true
		default:
			name = append(name, a)
		}
	}
	t.Name = strings.Join(name, " ")
	if t.Name == "" {
		return care.Task{}, errors.New("task name is required")
	}
	return t, nil
}

// FormatTasks lists tasks one per line.
func FormatTasks(o care.Owner, tasks []care.Task) string {
	if len(tasks) == 0 {
		return "No tasks."
	}
	var b strings.Builder
	for _, t := range tasks {
		at := "--:--"
		if c, ok := t.Fixed(); ok {
			at = c.String()
		}
		fmt.Fprintf(&b, "%s  %s (%s) %dmin %s [%s]", at, t.Name, o.PetName(t.PetID), t.DurationMinutes, t.Priority, t.Status.Effective())
		if t.Recurrence.IsRecurring() {
			fmt.Fprintf(&b, " %s", t.Recurrence)
		}
		if t.NextDue != nil {
			fmt.Fprintf(&b, " next %s", t.NextDue)
		}
		fmt.Fprintf(&b, "  id=%s\n", t.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}
