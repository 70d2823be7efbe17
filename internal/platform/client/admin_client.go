package client

import (
	"fmt"
	"net/http"

	"ACDB/internal/domain"
	"ACDB/internal/platform/api/dto"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	databasesEndpoint   = "/databases"
	calibrationEndpoint = "/calibration"
	mapsEndpoint        = "/maps"
	heapInfoEndpoint    = "/heap-info"
	deltaEndpoint       = "/delta"
)

// AdminClient talks to the admin HTTP API of a running ACDB service.
type AdminClient struct {
	client    *resty.Client
	serverUrl string
}

func NewAdminClient(serverUrl string) *AdminClient {
	return &AdminClient{
		client:    resty.New(),
		serverUrl: serverUrl,
	}
}

func (c *AdminClient) Health() error {
	resp, err := c.client.R().Get(c.serverUrl + "/health")
	return checkResponse(resp, err)
}

func (c *AdminClient) OpenDatabase(path string) (*dto.OpenDatabaseResponse, error) {
	var result dto.OpenDatabaseResponse
	resp, err := c.client.R().
		SetBody(dto.OpenDatabaseRequest{Path: path}).
		SetResult(&result).
		Post(c.serverUrl + databasesEndpoint)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *AdminClient) CloseDatabase(index int) error {
	resp, err := c.client.R().Delete(fmt.Sprintf("%s%s/%d", c.serverUrl, databasesEndpoint, index))
	return checkResponse(resp, err)
}

func (c *AdminClient) SetActiveDatabase(index int) error {
	resp, err := c.client.R().Put(fmt.Sprintf("%s%s/%d/active", c.serverUrl, databasesEndpoint, index))
	return checkResponse(resp, err)
}

func (c *AdminClient) SetCalibration(m dto.CalibrationMap) (*dto.SetCalibrationResponse, error) {
	var result dto.SetCalibrationResponse
	resp, err := c.client.R().
		SetBody(m).
		SetResult(&result).
		Post(c.serverUrl + calibrationEndpoint)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *AdminClient) GetCalibration(kv domain.KeyVector) (*dto.CalibrationMap, error) {
	keyString, err := kv.ToString()
	if err != nil {
		return nil, err
	}
	var result dto.CalibrationMap
	resp, err := c.client.R().
		SetResult(&result).
		Get(c.serverUrl + calibrationEndpoint + "/" + keyString)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *AdminClient) ListMaps() ([]dto.CalibrationMap, error) {
	var result []dto.CalibrationMap
	resp, err := c.client.R().SetResult(&result).Get(c.serverUrl + mapsEndpoint)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *AdminClient) HeapInfo() ([]byte, error) {
	resp, err := c.client.R().Get(c.serverUrl + heapInfoEndpoint)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *AdminClient) SaveDelta() (bool, error) {
	var result dto.SaveDeltaResponse
	resp, err := c.client.R().SetResult(&result).Post(c.serverUrl + deltaEndpoint + "/save")
	if err := checkResponse(resp, err); err != nil {
		return false, err
	}
	return result.Saved, nil
}

func (c *AdminClient) DeltaVersion(index int) (*dto.DeltaVersionResponse, error) {
	var result dto.DeltaVersionResponse
	resp, err := c.client.R().
		SetResult(&result).
		Get(fmt.Sprintf("%s%s/%d/version", c.serverUrl, deltaEndpoint, index))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *AdminClient) SetPersistence(enabled bool) error {
	resp, err := c.client.R().
		SetBody(dto.PersistenceRequest{Enabled: enabled}).
		Put(c.serverUrl + deltaEndpoint + "/persistence")
	return checkResponse(resp, err)
}

// checkResponse turns transport failures and error statuses into domain
// errors so callers can keep using errors.Is.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrapf(domain.ErrFailed, "request failed: %v", err)
	}
	if !resp.IsError() {
		return nil
	}
	var sentinel error
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		sentinel = domain.ErrBadParam
	case http.StatusNotFound:
		sentinel = domain.ErrNotExist
	case http.StatusConflict:
		sentinel = domain.ErrHandle
	case http.StatusInsufficientStorage:
		sentinel = domain.ErrNoResource
	case http.StatusNotImplemented:
		sentinel = domain.ErrUnsupported
	default:
		sentinel = domain.ErrFailed
	}
	return errors.Wrapf(sentinel, "%s %s: %s", resp.Request.Method, resp.Request.URL, resp.Status())
}
