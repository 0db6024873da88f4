package handler

import (
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/event-booking/internal/logging"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{model.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{model.ErrNotFound, http.StatusNotFound, "not_found"},
	{model.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
	{model.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
	{model.ErrForbidden, http.StatusForbidden, "forbidden"},
}

// writeServiceError maps a service error onto a response. Errors outside the
// domain taxonomy become an opaque 500 and are logged with full detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeJSON(w, m.status, model.ErrorResponse{Error: err.Error(), Code: m.code})
			return
		}
	}

	logging.FromContext(r.Context()).WithError(err).Error("request failed")
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error: "internal error",
		Code:  "internal",
	})
}
