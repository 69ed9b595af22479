package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/planweave/planweave/internal/event"
	"github.com/planweave/planweave/pkg/cerr"
)

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxActionBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err)
	}
	return nil
}

func marshalEvent(ev event.Event) ([]byte, error) {
	return json.Marshal(ev)
}
