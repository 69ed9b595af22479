// Command planweave manages replicated plan documents: structured records
// of work that replicas edit independently and reconcile by folding the
// same operation log.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/planweave/planweave/internal/config"
	"github.com/planweave/planweave/pkg/clog"
)

var (
	app = kingpin.New("planweave", "Replicated, mergeable plan documents")

	openCmd   = app.Command("open", "Create a new plan")
	openTitle = openCmd.Arg("title", "Plan title").Required().String()
	openDesc  = openCmd.Flag("description", "Plan description").Short('d').String()

	listCmd = app.Command("list", "List all plans")

	showCmd  = app.Command("show", "Show plan details")
	showID   = showCmd.Arg("id", "Plan id or prefix").Required().String()
	showJSON = showCmd.Flag("json", "Print the plan as JSON").Bool()

	editCmd   = app.Command("edit", "Edit plan title or description")
	editID    = editCmd.Arg("id", "Plan id or prefix").Required().String()
	editTitle = editCmd.Flag("title", "New title").String()
	editDesc  = editCmd.Flag("description", "New description").String()

	statusCmd    = app.Command("status", "Set the plan status")
	statusID     = statusCmd.Arg("id", "Plan id or prefix").Required().String()
	statusTarget = statusCmd.Arg("status", "draft|approved|in-progress|completed|archived").Required().String()

	removeCmd = app.Command("remove", "Remove a plan (delegates only)")
	removeID  = removeCmd.Arg("id", "Plan id or prefix").Required().String()

	taskCmd = app.Command("task", "Task management")

	taskAddCmd      = taskCmd.Command("add", "Add a task")
	taskAddPlan     = taskAddCmd.Arg("plan", "Plan id or prefix").Required().String()
	taskAddSubject  = taskAddCmd.Arg("subject", "Task subject").Required().String()
	taskAddDesc     = taskAddCmd.Flag("description", "Task description").Short('d').String()
	taskAddEstimate = taskAddCmd.Flag("estimate", "Effort estimate").String()
	taskAddFiles    = taskAddCmd.Flag("file", "Affected file (repeatable)").Strings()

	taskEditCmd      = taskCmd.Command("edit", "Edit a task; omitted flags keep current values")
	taskEditPlan     = taskEditCmd.Arg("plan", "Plan id or prefix").Required().String()
	taskEditID       = taskEditCmd.Arg("task", "Task id or prefix").Required().String()
	taskEditSubject  = taskEditCmd.Flag("subject", "New subject").String()
	taskEditDesc     = taskEditCmd.Flag("description", "New description").String()
	taskEditEstimate = taskEditCmd.Flag("estimate", "New estimate").String()
	taskEditFiles    = taskEditCmd.Flag("file", "Affected file (repeatable, replaces the list)").Strings()

	taskDoneCmd    = taskCmd.Command("done", "Link the commit that completes a task")
	taskDonePlan   = taskDoneCmd.Arg("plan", "Plan id or prefix").Required().String()
	taskDoneID     = taskDoneCmd.Arg("task", "Task id or prefix").Required().String()
	taskDoneCommit = taskDoneCmd.Arg("commit", "Commit hash").Required().String()

	taskRemoveCmd  = taskCmd.Command("remove", "Remove a task")
	taskRemovePlan = taskRemoveCmd.Arg("plan", "Plan id or prefix").Required().String()
	taskRemoveID   = taskRemoveCmd.Arg("task", "Task id or prefix").Required().String()

	taskReorderCmd   = taskCmd.Command("reorder", "Reorder tasks; omitted tasks keep their relative order at the end")
	taskReorderPlan  = taskReorderCmd.Arg("plan", "Plan id or prefix").Required().String()
	taskReorderOrder = taskReorderCmd.Arg("task", "Task ids in the new order").Required().Strings()

	taskBlockedByCmd  = taskCmd.Command("blocked-by", "Replace a task's dependencies")
	taskBlockedByPlan = taskBlockedByCmd.Arg("plan", "Plan id or prefix").Required().String()
	taskBlockedByID   = taskBlockedByCmd.Arg("task", "Task id or prefix").Required().String()
	taskBlockedByDeps = taskBlockedByCmd.Arg("dependency", "Blocking task ids (empty clears)").Strings()

	taskLinkIssueCmd   = taskCmd.Command("link-issue", "Link an issue to a task")
	taskLinkIssuePlan  = taskLinkIssueCmd.Arg("plan", "Plan id or prefix").Required().String()
	taskLinkIssueID    = taskLinkIssueCmd.Arg("task", "Task id or prefix").Required().String()
	taskLinkIssueIssue = taskLinkIssueCmd.Arg("issue", "Issue id").Required().String()

	unblockedCmd  = app.Command("unblocked", "List tasks ready to start")
	unblockedPlan = unblockedCmd.Arg("id", "Plan id or prefix").Required().String()

	linkCmd       = app.Command("link", "Link a related object to a plan")
	linkIssueCmd  = linkCmd.Command("issue", "Link an issue")
	linkIssuePlan = linkIssueCmd.Arg("plan", "Plan id or prefix").Required().String()
	linkIssueID   = linkIssueCmd.Arg("issue", "Issue id").Required().String()
	linkPatchCmd  = linkCmd.Command("patch", "Link a patch")
	linkPatchPlan = linkPatchCmd.Arg("plan", "Plan id or prefix").Required().String()
	linkPatchID   = linkPatchCmd.Arg("patch", "Patch id").Required().String()

	unlinkCmd       = app.Command("unlink", "Unlink a related object from a plan")
	unlinkIssueCmd  = unlinkCmd.Command("issue", "Unlink an issue")
	unlinkIssuePlan = unlinkIssueCmd.Arg("plan", "Plan id or prefix").Required().String()
	unlinkIssueID   = unlinkIssueCmd.Arg("issue", "Issue id").Required().String()
	unlinkPatchCmd  = unlinkCmd.Command("patch", "Unlink a patch")
	unlinkPatchPlan = unlinkPatchCmd.Arg("plan", "Plan id or prefix").Required().String()
	unlinkPatchID   = unlinkPatchCmd.Arg("patch", "Patch id").Required().String()

	criticalCmd        = app.Command("critical-file", "Critical file tracking")
	criticalAddCmd     = criticalCmd.Command("add", "Mark a file as critical")
	criticalAddPlan    = criticalAddCmd.Arg("plan", "Plan id or prefix").Required().String()
	criticalAddPath    = criticalAddCmd.Arg("path", "File path").Required().String()
	criticalRemoveCmd  = criticalCmd.Command("remove", "Unmark a critical file")
	criticalRemovePlan = criticalRemoveCmd.Arg("plan", "Plan id or prefix").Required().String()
	criticalRemovePath = criticalRemoveCmd.Arg("path", "File path").Required().String()

	commentCmd = app.Command("comment", "Plan discussion")

	commentAddCmd     = commentCmd.Command("add", "Add a comment")
	commentAddPlan    = commentAddCmd.Arg("plan", "Plan id or prefix").Required().String()
	commentAddBody    = commentAddCmd.Arg("body", "Comment body").Required().String()
	commentAddReplyTo = commentAddCmd.Flag("reply-to", "Comment id to reply to").String()

	commentEditCmd  = commentCmd.Command("edit", "Edit your own comment")
	commentEditPlan = commentEditCmd.Arg("plan", "Plan id or prefix").Required().String()
	commentEditID   = commentEditCmd.Arg("comment", "Comment id or prefix").Required().String()
	commentEditBody = commentEditCmd.Arg("body", "New body").Required().String()

	commentRedactCmd  = commentCmd.Command("redact", "Redact your own comment")
	commentRedactPlan = commentRedactCmd.Arg("plan", "Plan id or prefix").Required().String()
	commentRedactID   = commentRedactCmd.Arg("comment", "Comment id or prefix").Required().String()

	labelCmd    = app.Command("label", "Replace the plan's labels (delegates only)")
	labelPlan   = labelCmd.Arg("plan", "Plan id or prefix").Required().String()
	labelLabels = labelCmd.Arg("label", "Labels (empty clears)").Strings()

	assignCmd       = app.Command("assign", "Replace the plan's assignees (delegates only)")
	assignPlan      = assignCmd.Arg("plan", "Plan id or prefix").Required().String()
	assignAssignees = assignCmd.Arg("identity", "Assignee identities (empty clears)").Strings()

	exportCmd    = app.Command("export", "Export a plan")
	exportID     = exportCmd.Arg("id", "Plan id or prefix").Required().String()
	exportFormat = exportCmd.Flag("format", "md or json").Default("md").Enum("md", "json")

	delegateCmd       = app.Command("delegate", "Manage the delegate document")
	delegateListCmd   = delegateCmd.Command("list", "List delegates")
	delegateAddCmd    = delegateCmd.Command("add", "Add a delegate")
	delegateAddID     = delegateAddCmd.Arg("identity", "Delegate identity").Required().String()
	delegateRemoveCmd = delegateCmd.Command("remove", "Remove a delegate")
	delegateRemoveID  = delegateRemoveCmd.Arg("identity", "Delegate identity").Required().String()

	serveCmd = app.Command("serve", "Run the HTTP API server")

	watchCmd  = app.Command("watch", "Watch a plan and print diffs as it changes")
	watchPlan = watchCmd.Arg("id", "Plan id or prefix").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(
		clog.NewTextHandler(os.Stderr, clog.WithLevel(env.SlogLevel())),
	)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(ctx, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runner.run(ctx, command); err != nil {
		if ctx.Err() != nil {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
