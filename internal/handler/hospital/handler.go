package hospital

import (
	"net/http"

	"github.com/msfrancis/mediguide/backend/internal/model/hospital"
	"github.com/msfrancis/mediguide/backend/pkg/utils"
)

// Handler serves the read-only trusted-hospital list. Editing the list is
// the identity service's job.
type Handler struct {
	store hospital.Store
}

func New(store hospital.Store) *Handler {
	return &Handler{store: store}
}

// HandleList serves GET /api/hospitals?userId=. The list comes back in
// priority order, first choice first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	list, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}
