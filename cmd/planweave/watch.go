package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/conc/pool"

	"github.com/planweave/planweave/internal/event"
	"github.com/planweave/planweave/internal/watch"
)

// watch follows one plan and prints a unified diff of its rendered form
// every time another process changes its log.
func (r *runner) watch(ctx context.Context) error {
	if r.local == nil {
		return errors.New("watch requires local storage")
	}
	item, err := r.plans.Get(ctx, *watchPlan)
	if err != nil {
		return err
	}
	planID := item.ID
	before := item.Plan.Markdown(planID)
	printPlanSummary(item)

	subID, ch := r.bus.Subscribe(16)
	defer r.bus.Unsubscribe(subID)

	watcher := watch.New(r.planDir(), r.bus)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(watcher.Run)
	p.Go(func(ctx context.Context) error {
		for {
			select {
			case ev := <-ch:
				if ev.PlanID != planID {
					continue
				}
				if ev.Type == event.TypePlanDeleted {
					fmt.Println("plan removed")
					return nil
				}
				item, err := r.plans.Get(ctx, string(planID))
				if err != nil {
					return err
				}
				after := item.Plan.Markdown(planID)
				printDiff(before, after)
				printRejected(item.Outcomes)
				before = after
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	if err := p.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printDiff(before, after string) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	})
	if err != nil || text == "" {
		return
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			diffAddColor.Print(line)
		case strings.HasPrefix(line, "-"):
			diffDelColor.Print(line)
		default:
			fmt.Print(line)
		}
	}
}
