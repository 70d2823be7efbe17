package zmq

import "ACDB/internal/platform/api/dto"

type ApiRequest struct {
	Action    string              `json:"action,omitempty"`
	KeyString string              `json:"key_string,omitempty"`
	Map       *dto.CalibrationMap `json:"map,omitempty"`
}

type ApiResponse struct {
	Maps    []dto.CalibrationMap `json:"maps,omitempty"`
	Saved   bool                 `json:"saved,omitempty"`
	Success bool                 `json:"success"`
	Error   string               `json:"error,omitempty"`
}
