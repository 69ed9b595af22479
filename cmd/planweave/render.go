package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/plan"
)

var (
	idColor       = color.New(color.FgCyan)
	titleColor    = color.New(color.Bold)
	doneColor     = color.New(color.FgGreen)
	blockedColor  = color.New(color.FgRed)
	rejectedColor = color.New(color.FgYellow)
	diffAddColor  = color.New(color.FgGreen)
	diffDelColor  = color.New(color.FgRed)
)

func statusColor(s plan.Status) *color.Color {
	switch s {
	case plan.StatusApproved:
		return color.New(color.FgBlue)
	case plan.StatusInProgress:
		return color.New(color.FgYellow)
	case plan.StatusCompleted:
		return color.New(color.FgGreen)
	case plan.StatusArchived:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgWhite)
	}
}

func printPlanSummary(item *plan.Item) {
	p := item.Plan
	fmt.Printf("%s  %s  %s",
		idColor.Sprint(item.ID.Short()),
		statusColor(p.Status).Sprintf("%-11s", p.Status),
		titleColor.Sprint(p.Title),
	)
	if len(p.Tasks) > 0 {
		fmt.Printf("  (%.0f%% of %d tasks)", p.CompletionPercentage(), len(p.Tasks))
	}
	fmt.Println()
}

func printPlan(item *plan.Item) {
	p := item.Plan
	printPlanSummary(item)
	fmt.Printf("author: %s\n", p.Author)
	if len(p.Assignees) > 0 {
		parts := make([]string, len(p.Assignees))
		for i, a := range p.Assignees {
			parts[i] = string(a)
		}
		fmt.Printf("assignees: %s\n", strings.Join(parts, ", "))
	}
	if len(p.Labels) > 0 {
		fmt.Printf("labels: %s\n", strings.Join(p.Labels, ", "))
	}
	if p.Description != "" {
		fmt.Printf("\n%s\n", p.Description)
	}
	if len(p.Tasks) > 0 {
		fmt.Println()
		printTasks(p, p.Tasks)
	}
	if len(p.CriticalFiles) > 0 {
		fmt.Println("\ncritical files:")
		for _, f := range p.CriticalFiles {
			fmt.Printf("  %s\n", f)
		}
	}
	if len(p.RelatedIssues) > 0 {
		fmt.Printf("\nissues: %s\n", joinIDs(p.RelatedIssues))
	}
	if len(p.RelatedPatches) > 0 {
		fmt.Printf("patches: %s\n", joinIDs(p.RelatedPatches))
	}
	if len(p.Thread.Comments) > 1 {
		fmt.Println("\ndiscussion:")
		for _, c := range p.Thread.Comments[1:] {
			fmt.Printf("  %s %s: %s\n", idColor.Sprint(c.ID.Short()), c.Author, c.Body)
		}
	}
}

func printTasks(p *plan.Plan, tasks []plan.Task) {
	done := make(map[object.ID]bool, len(p.Tasks))
	for i := range p.Tasks {
		if p.Tasks[i].Done() {
			done[p.Tasks[i].ID] = true
		}
	}
	for _, t := range tasks {
		mark := "[ ]"
		switch {
		case t.Done():
			mark = doneColor.Sprint("[x]")
		case isBlocked(&t, done):
			mark = blockedColor.Sprint("[-]")
		}
		fmt.Printf("%s %s  %s", mark, idColor.Sprint(t.ID.Short()), t.Subject)
		if t.Estimate != nil {
			fmt.Printf(" (%s)", *t.Estimate)
		}
		if len(t.BlockedBy) > 0 {
			fmt.Printf("  blocked by %s", joinShort(t.BlockedBy))
		}
		fmt.Println()
	}
}

func isBlocked(t *plan.Task, done map[object.ID]bool) bool {
	for _, dep := range t.BlockedBy {
		if !done[dep] {
			return true
		}
	}
	return false
}

// printRejected surfaces operations that arrived in the log but did not take
// effect, so divergence between replicas is visible rather than silent.
func printRejected(outcomes []plan.Outcome) {
	rejected := plan.Rejected(outcomes)
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr)
	for _, o := range rejected {
		rejectedColor.Fprintf(os.Stderr, "rejected %s", o.Op.Short())
		if o.Action != "" {
			rejectedColor.Fprintf(os.Stderr, " (%s)", o.Action)
		}
		rejectedColor.Fprintf(os.Stderr, ": %v\n", o.Err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinIDs(ids []object.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func joinShort(ids []object.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.Short()
	}
	return strings.Join(parts, ", ")
}
