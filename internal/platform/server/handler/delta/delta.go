package delta

import (
	"net/http"

	"ACDB/internal/application/service"
	"ACDB/internal/platform/api/dto"
	"ACDB/internal/platform/server/handler/database"
	"ACDB/internal/platform/server/handler/response"
)

type DeltaHandler struct {
	saveService     *service.SaveDeltaService
	settingsService *service.DeltaSettingsService
}

func NewDeltaHandler(saveService *service.SaveDeltaService,
	settingsService *service.DeltaSettingsService) *DeltaHandler {
	return &DeltaHandler{
		saveService:     saveService,
		settingsService: settingsService,
	}
}

func (h *DeltaHandler) Save(w http.ResponseWriter, r *http.Request) {
	result, err := h.saveService.Execute()
	if err != nil {
		response.WriteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, dto.SaveDeltaResponse{Saved: result.Saved})
}

func (h *DeltaHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	index, err := database.DatabaseIndex(r)
	if err != nil {
		response.WriteError(w, err)
		return
	}
	version, err := h.settingsService.Version(index)
	if err != nil {
		response.WriteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, dto.DeltaVersionResponse{Major: version.Major, Minor: version.Minor})
}

func (h *DeltaHandler) SetPersistence(w http.ResponseWriter, r *http.Request) {
	var request dto.PersistenceRequest
	if err := response.Decode(r, &request); err != nil {
		response.WriteError(w, err)
		return
	}
	h.settingsService.SetPersistence(request.Enabled)
	response.WriteJSON(w, http.StatusOK, request)
}
