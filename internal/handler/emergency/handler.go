package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	emergencyModel "github.com/msfrancis/mediguide/backend/internal/model/emergency"
	emergencyService "github.com/msfrancis/mediguide/backend/internal/service/emergency"
	"github.com/msfrancis/mediguide/backend/pkg/utils"
)

// Handler runs emergency dispatches on behalf of the browser client. The
// client captures the geolocation fix (it is the one with the sensor) and
// posts it with the trigger; notices collected during the dispatch are
// returned alongside the result so the UI can surface them.
type Handler struct {
	newDispatcher func(locator emergencyService.Locator, notifier emergencyService.Notifier) *emergencyService.Dispatcher
}

func New(newDispatcher func(emergencyService.Locator, emergencyService.Notifier) *emergencyService.Dispatcher) *Handler {
	return &Handler{newDispatcher: newDispatcher}
}

type dispatchRequest struct {
	UserID        string                   `json:"userId"`
	HospitalID    string                   `json:"hospitalId,omitempty"`
	AutoTriggered bool                     `json:"isAutoTriggered"`
	Location      *emergencyModel.Location `json:"location"`
}

type dispatchResponse struct {
	*emergencyService.Result
	Notices []notice `json:"notices"`
}

type notice struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// noticeCollector gathers dispatch notices for the JSON response.
type noticeCollector struct {
	notices []notice
}

func (c *noticeCollector) Notify(title, detail string) {
	c.notices = append(c.notices, notice{Title: title, Detail: detail})
}

// clientLocator hands the dispatcher the fix the client captured. A missing
// fix reads as the device failing to provide one.
type clientLocator struct {
	fix *emergencyModel.Location
}

func (l clientLocator) Current(_ context.Context) (emergencyModel.Location, error) {
	if l.fix == nil || (l.fix.Latitude == 0 && l.fix.Longitude == 0 && l.fix.Accuracy == 0) {
		return emergencyModel.Location{}, errors.New("no location fix provided")
	}
	fix := *l.fix
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = time.Now().UTC()
	}
	return fix, nil
}

// HandleDispatch serves POST /api/emergency.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	collector := &noticeCollector{}
	dispatcher := h.newDispatcher(clientLocator{fix: req.Location}, collector)

	result, err := dispatcher.Dispatch(r.Context(), emergencyService.Options{
		UserID:        req.UserID,
		HospitalID:    req.HospitalID,
		AutoTriggered: req.AutoTriggered,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, emergencyService.ErrLocationUnavailable):
			status = http.StatusBadRequest
		case errors.Is(err, emergencyService.ErrHospitalNotFound):
			status = http.StatusNotFound
		}
		utils.RespondJSON(w, status, map[string]any{
			"error":   err.Error(),
			"notices": collector.notices,
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, dispatchResponse{
		Result:  result,
		Notices: collector.notices,
	})
}
