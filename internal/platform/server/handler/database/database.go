package database

import (
	"net/http"
	"strconv"

	"ACDB/internal/application/service"
	"ACDB/internal/domain"
	"ACDB/internal/platform/api/dto"
	"ACDB/internal/platform/server/handler/response"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type DatabaseHandler struct {
	openService   *service.OpenDatabaseService
	closeService  *service.CloseDatabaseService
	activeService *service.SetActiveDatabaseService
}

func NewDatabaseHandler(openService *service.OpenDatabaseService,
	closeService *service.CloseDatabaseService,
	activeService *service.SetActiveDatabaseService) *DatabaseHandler {
	return &DatabaseHandler{
		openService:   openService,
		closeService:  closeService,
		activeService: activeService,
	}
}

func (h *DatabaseHandler) OpenDatabase(w http.ResponseWriter, r *http.Request) {
	var request dto.OpenDatabaseRequest
	if err := response.Decode(r, &request); err != nil {
		response.WriteError(w, err)
		return
	}
	result, err := h.openService.Execute(service.OpenDatabaseCommand{Path: request.Path})
	if err != nil {
		response.WriteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, dto.OpenDatabaseResponse{
		DatabaseIndex: result.DatabaseIndex,
		DeltaPath:     result.DeltaPath,
		DeltaLoaded:   result.DeltaLoaded,
		MapCount:      result.MapCount,
	})
}

func (h *DatabaseHandler) CloseDatabase(w http.ResponseWriter, r *http.Request) {
	index, err := DatabaseIndex(r)
	if err != nil {
		response.WriteError(w, err)
		return
	}
	if err := h.closeService.Execute(service.CloseDatabaseCommand{DatabaseIndex: index}); err != nil {
		response.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DatabaseHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	index, err := DatabaseIndex(r)
	if err != nil {
		response.WriteError(w, err)
		return
	}
	if err := h.activeService.Execute(service.SetActiveDatabaseCommand{DatabaseIndex: index}); err != nil {
		response.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func DatabaseIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, errors.Wrapf(domain.ErrBadParam, "invalid database index %q", raw)
	}
	return index, nil
}
