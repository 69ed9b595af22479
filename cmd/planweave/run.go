package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"

	"github.com/planweave/planweave/internal/config"
	"github.com/planweave/planweave/internal/event"
	"github.com/planweave/planweave/internal/identity"
	identityimpl "github.com/planweave/planweave/internal/identity/repositoryimpl"
	"github.com/planweave/planweave/internal/object"
	oplogimpl "github.com/planweave/planweave/internal/oplog/repositoryimpl"
	"github.com/planweave/planweave/internal/plan"
	"github.com/planweave/planweave/internal/server"
	"github.com/planweave/planweave/internal/watch"
	"github.com/planweave/planweave/pkg/storage"
)

type runner struct {
	env        *config.Env
	local      *storage.Local
	plans      *plan.Service
	identities identity.Repository
	bus        *event.Bus
}

func newRunner(ctx context.Context, env *config.Env) (*runner, error) {
	r := &runner{env: env, bus: event.New()}

	var store storage.Storage
	switch env.Type {
	case "s3":
		s3Store, err := storage.NewS3(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to set up s3 storage: %w", err)
		}
		store = s3Store
	default:
		local, err := storage.NewLocal(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to set up local storage: %w", err)
		}
		r.local = local
		store = local
	}

	r.identities = identityimpl.NewYAMLRepository(store)
	r.plans = plan.NewService(oplogimpl.NewYAMLRepository(store), r.identities, r.bus)
	return r, nil
}

// actor is the identity used to author operations.
func (r *runner) actor() (identity.Identity, error) {
	if r.env.Identity == "" {
		return "", errors.New("no identity configured: set PLANWEAVE_IDENTITY")
	}
	return identity.Identity(r.env.Identity), nil
}

func (r *runner) run(ctx context.Context, command string) error {
	switch command {
	case openCmd.FullCommand():
		return r.open(ctx)
	case listCmd.FullCommand():
		return r.list(ctx)
	case showCmd.FullCommand():
		return r.show(ctx)
	case editCmd.FullCommand():
		return r.edit(ctx)
	case statusCmd.FullCommand():
		return r.setStatus(ctx)
	case removeCmd.FullCommand():
		return r.remove(ctx)
	case taskAddCmd.FullCommand():
		return r.taskAdd(ctx)
	case taskEditCmd.FullCommand():
		return r.taskEdit(ctx)
	case taskDoneCmd.FullCommand():
		return r.taskDone(ctx)
	case taskRemoveCmd.FullCommand():
		return r.taskRemove(ctx)
	case taskReorderCmd.FullCommand():
		return r.taskReorder(ctx)
	case taskBlockedByCmd.FullCommand():
		return r.taskBlockedBy(ctx)
	case taskLinkIssueCmd.FullCommand():
		return r.taskLinkIssue(ctx)
	case unblockedCmd.FullCommand():
		return r.unblocked(ctx)
	case linkIssueCmd.FullCommand():
		return r.apply(ctx, *linkIssuePlan, plan.LinkIssue{IssueID: object.ID(*linkIssueID)})
	case linkPatchCmd.FullCommand():
		return r.apply(ctx, *linkPatchPlan, plan.LinkPatch{PatchID: object.ID(*linkPatchID)})
	case unlinkIssueCmd.FullCommand():
		return r.apply(ctx, *unlinkIssuePlan, plan.UnlinkIssue{IssueID: object.ID(*unlinkIssueID)})
	case unlinkPatchCmd.FullCommand():
		return r.apply(ctx, *unlinkPatchPlan, plan.UnlinkPatch{PatchID: object.ID(*unlinkPatchID)})
	case criticalAddCmd.FullCommand():
		return r.apply(ctx, *criticalAddPlan, plan.AddCriticalFile{Path: *criticalAddPath})
	case criticalRemoveCmd.FullCommand():
		return r.apply(ctx, *criticalRemovePlan, plan.RemoveCriticalFile{Path: *criticalRemovePath})
	case commentAddCmd.FullCommand():
		return r.commentAdd(ctx)
	case commentEditCmd.FullCommand():
		return r.commentEdit(ctx)
	case commentRedactCmd.FullCommand():
		return r.commentRedact(ctx)
	case labelCmd.FullCommand():
		return r.apply(ctx, *labelPlan, plan.SetLabels{Labels: *labelLabels})
	case assignCmd.FullCommand():
		return r.assign(ctx)
	case exportCmd.FullCommand():
		return r.export(ctx)
	case delegateListCmd.FullCommand():
		return r.delegateList(ctx)
	case delegateAddCmd.FullCommand():
		return r.delegateAdd(ctx)
	case delegateRemoveCmd.FullCommand():
		return r.delegateRemove(ctx)
	case serveCmd.FullCommand():
		return r.serve(ctx)
	case watchCmd.FullCommand():
		return r.watch(ctx)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (r *runner) open(ctx context.Context) error {
	actor, err := r.actor()
	if err != nil {
		return err
	}
	item, err := r.plans.Open(ctx, actor, plan.Open{Title: *openTitle, Description: *openDesc})
	if err != nil {
		return err
	}
	printPlanSummary(item)
	return nil
}

func (r *runner) list(ctx context.Context) error {
	items, err := r.plans.List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no plans")
		return nil
	}
	for _, item := range items {
		printPlanSummary(item)
	}
	return nil
}

func (r *runner) show(ctx context.Context) error {
	item, err := r.plans.Get(ctx, *showID)
	if err != nil {
		return err
	}
	if *showJSON {
		return printJSON(item)
	}
	printPlan(item)
	printRejected(item.Outcomes)
	return nil
}

func (r *runner) edit(ctx context.Context) error {
	if *editTitle == "" && *editDesc == "" {
		return errors.New("nothing to edit: pass --title or --description")
	}
	if *editTitle != "" {
		if err := r.apply(ctx, *editID, plan.EditTitle{Title: *editTitle}); err != nil {
			return err
		}
	}
	if *editDesc != "" {
		return r.apply(ctx, *editID, plan.EditDescription{Description: *editDesc})
	}
	return nil
}

func (r *runner) setStatus(ctx context.Context) error {
	status, err := plan.ParseStatus(*statusTarget)
	if err != nil {
		return err
	}
	return r.apply(ctx, *statusID, plan.SetStatus{Status: status})
}

func (r *runner) remove(ctx context.Context) error {
	actor, err := r.actor()
	if err != nil {
		return err
	}
	if err := r.plans.Remove(ctx, *removeID, actor); err != nil {
		return err
	}
	fmt.Println("removed")
	return nil
}

func (r *runner) taskAdd(ctx context.Context) error {
	act := plan.AddTask{Subject: *taskAddSubject, AffectedFiles: *taskAddFiles}
	if *taskAddDesc != "" {
		act.Description = taskAddDesc
	}
	if *taskAddEstimate != "" {
		act.Estimate = taskAddEstimate
	}
	return r.apply(ctx, *taskAddPlan, act)
}

func (r *runner) taskEdit(ctx context.Context) error {
	taskID, err := r.resolveTask(ctx, *taskEditPlan, *taskEditID)
	if err != nil {
		return err
	}
	act := plan.EditTask{TaskID: taskID}
	if *taskEditSubject != "" {
		act.Subject = taskEditSubject
	}
	if *taskEditDesc != "" {
		act.Description = taskEditDesc
	}
	if *taskEditEstimate != "" {
		act.Estimate = taskEditEstimate
	}
	if len(*taskEditFiles) > 0 {
		act.AffectedFiles = taskEditFiles
	}
	return r.apply(ctx, *taskEditPlan, act)
}

func (r *runner) taskDone(ctx context.Context) error {
	taskID, err := r.resolveTask(ctx, *taskDonePlan, *taskDoneID)
	if err != nil {
		return err
	}
	commit, err := object.Parse(*taskDoneCommit)
	if err != nil {
		return err
	}
	return r.apply(ctx, *taskDonePlan, plan.LinkTaskCommit{TaskID: taskID, Commit: commit})
}

func (r *runner) taskRemove(ctx context.Context) error {
	taskID, err := r.resolveTask(ctx, *taskRemovePlan, *taskRemoveID)
	if err != nil {
		return err
	}
	return r.apply(ctx, *taskRemovePlan, plan.RemoveTask{TaskID: taskID})
}

func (r *runner) taskReorder(ctx context.Context) error {
	order, err := r.resolveTasks(ctx, *taskReorderPlan, *taskReorderOrder)
	if err != nil {
		return err
	}
	return r.apply(ctx, *taskReorderPlan, plan.ReorderTasks{Order: order})
}

func (r *runner) taskBlockedBy(ctx context.Context) error {
	taskID, err := r.resolveTask(ctx, *taskBlockedByPlan, *taskBlockedByID)
	if err != nil {
		return err
	}
	deps, err := r.resolveTasks(ctx, *taskBlockedByPlan, *taskBlockedByDeps)
	if err != nil {
		return err
	}
	return r.apply(ctx, *taskBlockedByPlan, plan.SetTaskBlockedBy{TaskID: taskID, BlockedBy: deps})
}

func (r *runner) taskLinkIssue(ctx context.Context) error {
	taskID, err := r.resolveTask(ctx, *taskLinkIssuePlan, *taskLinkIssueID)
	if err != nil {
		return err
	}
	return r.apply(ctx, *taskLinkIssuePlan, plan.LinkTaskIssue{
		TaskID:  taskID,
		IssueID: object.ID(*taskLinkIssueIssue),
	})
}

func (r *runner) unblocked(ctx context.Context) error {
	item, err := r.plans.Get(ctx, *unblockedPlan)
	if err != nil {
		return err
	}
	printTasks(item.Plan, item.Plan.UnblockedTasks())
	return nil
}

func (r *runner) commentAdd(ctx context.Context) error {
	act := plan.Comment{Body: *commentAddBody}
	if *commentAddReplyTo != "" {
		item, err := r.plans.Get(ctx, *commentAddPlan)
		if err != nil {
			return err
		}
		replyTo, err := plan.ResolveComment(item.Plan, *commentAddReplyTo)
		if err != nil {
			return err
		}
		act.ReplyTo = &replyTo
	}
	return r.apply(ctx, *commentAddPlan, act)
}

func (r *runner) commentEdit(ctx context.Context) error {
	commentID, err := r.resolveComment(ctx, *commentEditPlan, *commentEditID)
	if err != nil {
		return err
	}
	return r.apply(ctx, *commentEditPlan, plan.EditComment{CommentID: commentID, Body: *commentEditBody})
}

func (r *runner) commentRedact(ctx context.Context) error {
	commentID, err := r.resolveComment(ctx, *commentRedactPlan, *commentRedactID)
	if err != nil {
		return err
	}
	return r.apply(ctx, *commentRedactPlan, plan.RedactComment{CommentID: commentID})
}

func (r *runner) assign(ctx context.Context) error {
	assignees := make([]identity.Identity, 0, len(*assignAssignees))
	for _, a := range *assignAssignees {
		assignees = append(assignees, identity.Identity(a))
	}
	return r.apply(ctx, *assignPlan, plan.SetAssignees{Assignees: assignees})
}

func (r *runner) export(ctx context.Context) error {
	item, err := r.plans.Get(ctx, *exportID)
	if err != nil {
		return err
	}
	if *exportFormat == "json" {
		return printJSON(item)
	}
	fmt.Print(item.Plan.Markdown(item.ID))
	return nil
}

func (r *runner) delegateList(ctx context.Context) error {
	doc, err := r.identities.Get(ctx)
	if err != nil {
		return err
	}
	if len(doc.Delegates) == 0 {
		fmt.Println("no delegates")
		return nil
	}
	for _, d := range doc.Delegates {
		fmt.Println(d)
	}
	return nil
}

func (r *runner) delegateAdd(ctx context.Context) error {
	doc, err := r.identities.Get(ctx)
	if err != nil {
		return err
	}
	id := identity.Identity(*delegateAddID)
	if doc.IsDelegate(id) {
		return nil
	}
	doc.Delegates = append(doc.Delegates, id)
	return r.identities.Put(ctx, doc)
}

func (r *runner) delegateRemove(ctx context.Context) error {
	doc, err := r.identities.Get(ctx)
	if err != nil {
		return err
	}
	id := identity.Identity(*delegateRemoveID)
	kept := doc.Delegates[:0]
	for _, d := range doc.Delegates {
		if d != id {
			kept = append(kept, d)
		}
	}
	doc.Delegates = kept
	return r.identities.Put(ctx, doc)
}

func (r *runner) serve(ctx context.Context) error {
	srv := server.NewServer(r.env, r.plans, r.bus)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return srv.Shutdown(context.Background())
	})
	if r.local != nil {
		watcher := watch.New(r.planDir(), r.bus)
		p.Go(func(ctx context.Context) error {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return p.Wait()
}

// planDir is where the oplog repository keeps one log file per plan.
func (r *runner) planDir() string {
	return filepath.Join(r.local.BaseDir(), "plans")
}

// apply stages one action against the plan matching prefix and prints the
// updated plan on success.
func (r *runner) apply(ctx context.Context, prefix string, act plan.Action) error {
	actor, err := r.actor()
	if err != nil {
		return err
	}
	item, err := r.plans.Apply(ctx, prefix, actor, act)
	if err != nil {
		return err
	}
	printPlanSummary(item)
	printRejected(item.Outcomes)
	return nil
}

func (r *runner) resolveTask(ctx context.Context, planPrefix, taskPrefix string) (object.ID, error) {
	item, err := r.plans.Get(ctx, planPrefix)
	if err != nil {
		return "", err
	}
	return plan.ResolveTask(item.Plan, taskPrefix)
}

func (r *runner) resolveTasks(ctx context.Context, planPrefix string, prefixes []string) ([]object.ID, error) {
	item, err := r.plans.Get(ctx, planPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]object.ID, 0, len(prefixes))
	for _, prefix := range prefixes {
		id, err := plan.ResolveTask(item.Plan, prefix)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *runner) resolveComment(ctx context.Context, planPrefix, commentPrefix string) (object.ID, error) {
	item, err := r.plans.Get(ctx, planPrefix)
	if err != nil {
		return "", err
	}
	return plan.ResolveComment(item.Plan, commentPrefix)
}
