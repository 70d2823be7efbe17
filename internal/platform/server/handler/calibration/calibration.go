package calibration

import (
	"net/http"

	"ACDB/internal/application/service"
	"ACDB/internal/domain"
	"ACDB/internal/platform/api/dto"
	"ACDB/internal/platform/server/handler/response"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type CalibrationHandler struct {
	setService  *service.SetCalibrationService
	getService  *service.GetCalibrationService
	listService *service.ListCalibrationService
	infoService *service.HeapInfoService
}

func NewCalibrationHandler(setService *service.SetCalibrationService,
	getService *service.GetCalibrationService,
	listService *service.ListCalibrationService,
	infoService *service.HeapInfoService) *CalibrationHandler {
	return &CalibrationHandler{
		setService:  setService,
		getService:  getService,
		listService: listService,
		infoService: infoService,
	}
}

func (h *CalibrationHandler) SetCalibration(w http.ResponseWriter, r *http.Request) {
	var request dto.CalibrationMap
	if err := response.Decode(r, &request); err != nil {
		response.WriteError(w, err)
		return
	}
	result, err := h.setService.Execute(service.SetCalibrationCommand{Map: request.ToDeltaDataMap()})
	if err != nil {
		response.WriteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, dto.SetCalibrationResponse{
		Map:   dto.CalibrationMapFrom(result.Map),
		Saved: result.Saved,
	})
}

func (h *CalibrationHandler) GetCalibration(w http.ResponseWriter, r *http.Request) {
	kv, err := domain.ParseKeyVectorString(chi.URLParam(r, "keyVector"))
	if err != nil {
		response.WriteError(w, err)
		return
	}
	result, err := h.getService.Execute(service.GetCalibrationQuery{KeyVector: kv})
	if err != nil {
		response.WriteError(w, err)
		return
	}
	if !result.Found {
		response.WriteError(w, errors.Wrapf(domain.ErrNotExist, "no calibration for %s", chi.URLParam(r, "keyVector")))
		return
	}
	response.WriteJSON(w, http.StatusOK, dto.CalibrationMapFrom(result.Map))
}

func (h *CalibrationHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := h.listService.Execute()
	if err != nil {
		response.WriteError(w, err)
		return
	}
	out := make([]dto.CalibrationMap, 0, len(maps))
	for _, m := range maps {
		out = append(out, dto.CalibrationMapFrom(m))
	}
	response.WriteJSON(w, http.StatusOK, out)
}

func (h *CalibrationHandler) HeapInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.infoService.Execute()
	if err != nil {
		response.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(info)
}
