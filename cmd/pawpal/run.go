package main

import (
	"context"
	"fmt"
	"io"

	"pawpal/internal/app"
	"pawpal/internal/services/planning"
)

// run executes one CLI command against p.
func run(ctx context.Context, p *planning.Service, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	arg := func(i int) string {
		if i < len(rest) {
			return rest[i]
		}
		return ""
	}
	switch cmd {
	case "plan":
		if len(rest) < 1 {
			return fmt.Errorf("%w: plan <owner> [date]", errUsage)
		}
		day, err := app.ParseDay(arg(1), p.Today())
		if err != nil {
			return err
		}
		res, err := p.Plan(ctx, rest[0], day)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, planning.Render(res))
		if len(res.Plan.Explanation) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, res.Plan.ExplanationText())
		}
	case "complete", "done":
		if len(rest) < 2 {
			return fmt.Errorf("%w: complete <owner> <task_id> [date]", errUsage)
		}
		day, err := app.ParseDay(arg(2), p.Today())
		if err != nil {
			return err
		}
		c, err := p.Complete(ctx, rest[0], rest[1], day)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, c.Message)
	case "tasks":
		if len(rest) < 1 {
			return fmt.Errorf("%w: tasks <owner> [pet_id] [status] [HH:MM-HH:MM]", errUsage)
		}
		f, err := app.ParseFilter(rest[1:])
		if err != nil {
			return err
		}
		o, err := p.Owner(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, app.FormatTasks(*o, f.Apply(o.Tasks)))
	case "import":
		if len(rest) != 1 {
			return fmt.Errorf("%w: import <owner-file>", errUsage)
		}
		o, err := app.LoadOwnerFile(rest[0])
		if err != nil {
			return err
		}
		if err := p.SaveOwner(ctx, o); err != nil {
			return err
		}
		fmt.Fprintf(out, "imported owner %s with %d pets and %d tasks\n", o.ID, len(o.Pets), len(o.Tasks))
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}
