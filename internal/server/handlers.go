package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/plan"
	"github.com/planweave/planweave/pkg/cerr"
	"github.com/planweave/planweave/pkg/clog"
)

const maxActionBytes = 1 << 20

// actor resolves the identity a request acts as: the X-Identity header when
// present, otherwise the identity the server was configured with.
func (s *Server) actor(r *http.Request) (identity.Identity, error) {
	if id := r.Header.Get("X-Identity"); id != "" {
		return identity.Identity(id), nil
	}
	if s.env.Identity != "" {
		return identity.Identity(s.env.Identity), nil
	}
	return "", cerr.NewError(cerr.Unauthenticated, "no identity: set the X-Identity header", nil)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := s.plans.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"plans": items})
}

func (s *Server) handleOpenPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := s.actor(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var act plan.Open
	if err := decodeBody(r, &act); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if act.Title == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "title is required", nil)
		return
	}
	item, err := s.plans.Open(ctx, actor, act)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttribute(ctx, "plan", item.ID.Short())
	cerr.SetJSONResponse(ctx, item)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.plans.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, item)
}

func (s *Server) handleRemovePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := s.actor(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.plans.Remove(ctx, chi.URLParam(r, "id"), actor); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"removed": true})
}

// handleApplyAction accepts a raw action payload, the same JSON shape that
// is stored in the operation log, and applies it as the requesting identity.
func (s *Server) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := s.actor(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBytes))
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "failed to read request body", err)
		return
	}
	act, err := plan.DecodeAction(body)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), err)
		return
	}
	item, err := s.plans.Apply(ctx, chi.URLParam(r, "id"), actor, act)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttribute(ctx, "action", act.Type())
	cerr.SetJSONResponse(ctx, item)
}

func (s *Server) handleUnblockedTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.plans.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks := item.Plan.UnblockedTasks()
	if tasks == nil {
		tasks = []plan.Task{}
	}
	cerr.SetJSONResponse(ctx, map[string]any{"id": item.ID, "tasks": tasks})
}

// handleOutcomes reports the rejected operations of a plan's fold, which is
// how a replica inspects what arrived via sync but did not take effect.
func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.plans.Outcomes(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	rejected := plan.Rejected(item.Outcomes)
	if rejected == nil {
		rejected = []plan.Outcome{}
	}
	cerr.SetJSONResponse(ctx, map[string]any{"id": item.ID, "rejected": rejected})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.plans.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"id":       item.ID,
		"markdown": item.Plan.Markdown(item.ID),
	})
}

// handleEvents streams plan change events as SSE until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	subID, ch := s.bus.Subscribe(16)
	defer s.bus.Unsubscribe(subID)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := marshalEvent(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
