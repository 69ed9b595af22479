package plan

import (
	"fmt"
	"strings"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
)

// Markdown renders the plan as a standalone document. Task checkboxes
// reflect derived state: [x] done, [-] blocked, [ ] ready.
func (p *Plan) Markdown(id object.ID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	fmt.Fprintf(&b, "- id: `%s`\n", id)
	fmt.Fprintf(&b, "- status: %s\n", p.Status)
	fmt.Fprintf(&b, "- author: %s\n", p.Author)
	if len(p.Assignees) > 0 {
		fmt.Fprintf(&b, "- assignees: %s\n", joinIdentities(p.Assignees))
	}
	if len(p.Labels) > 0 {
		fmt.Fprintf(&b, "- labels: %s\n", strings.Join(p.Labels, ", "))
	}
	if len(p.Tasks) > 0 {
		fmt.Fprintf(&b, "- progress: %.0f%%\n", p.CompletionPercentage())
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Description)
	}

	if len(p.Tasks) > 0 {
		done := make(map[object.ID]bool, len(p.Tasks))
		for i := range p.Tasks {
			if p.Tasks[i].Done() {
				done[p.Tasks[i].ID] = true
			}
		}
		b.WriteString("\n## Tasks\n\n")
		for _, t := range p.Tasks {
			fmt.Fprintf(&b, "- %s `%s` %s", checkbox(&t, done), t.ID.Short(), t.Subject)
			if t.Estimate != nil {
				fmt.Fprintf(&b, " (%s)", *t.Estimate)
			}
			b.WriteByte('\n')
			if t.Description != nil {
				fmt.Fprintf(&b, "  %s\n", *t.Description)
			}
			for _, dep := range t.BlockedBy {
				fmt.Fprintf(&b, "  - blocked by `%s`\n", dep.Short())
			}
			if t.LinkedIssue != nil {
				fmt.Fprintf(&b, "  - issue `%s`\n", t.LinkedIssue.Short())
			}
			if t.LinkedCommit != nil {
				fmt.Fprintf(&b, "  - commit `%s`\n", t.LinkedCommit.Short())
			}
			for _, f := range t.AffectedFiles {
				fmt.Fprintf(&b, "  - touches `%s`\n", f)
			}
		}
	}

	if len(p.CriticalFiles) > 0 {
		b.WriteString("\n## Critical files\n\n")
		for _, f := range p.CriticalFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}
	if len(p.RelatedIssues) > 0 {
		b.WriteString("\n## Related issues\n\n")
		for _, i := range p.RelatedIssues {
			fmt.Fprintf(&b, "- `%s`\n", i)
		}
	}
	if len(p.RelatedPatches) > 0 {
		b.WriteString("\n## Related patches\n\n")
		for _, i := range p.RelatedPatches {
			fmt.Fprintf(&b, "- `%s`\n", i)
		}
	}

	// The root comment repeats the description, so only replies are
	// rendered here.
	if len(p.Thread.Comments) > 1 {
		b.WriteString("\n## Discussion\n\n")
		for _, c := range p.Thread.Comments[1:] {
			fmt.Fprintf(&b, "**%s** (%s):\n\n%s\n\n", c.Author, c.CreatedAt.Format("2006-01-02 15:04"), c.Body)
		}
	}
	return b.String()
}

func checkbox(t *Task, done map[object.ID]bool) string {
	if t.Done() {
		return "[x]"
	}
	for _, dep := range t.BlockedBy {
		if !done[dep] {
			return "[-]"
		}
	}
	return "[ ]"
}

func joinIdentities(ids []identity.Identity) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
