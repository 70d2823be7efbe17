package zmq

import (
	"context"

	"ACDB/internal/application/service"
	"ACDB/internal/domain"
	"ACDB/internal/platform/api/dto"

	"github.com/go-zeromq/zmq4"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	GetMap    = "GET_MAP"
	SetMap    = "SET_MAP"
	ListMaps  = "LIST_MAPS"
	SaveDelta = "SAVE_DELTA"
)

// ZmqApi serves calibration lookups over a REP socket for clients that do
// not want the HTTP round trip. Requests are handled one at a time; every
// service call takes the context command lock anyway.
type ZmqApi struct {
	socket   zmq4.Socket
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logrus.FieldLogger
}

type Services struct {
	Get  *service.GetCalibrationService
	Set  *service.SetCalibrationService
	List *service.ListCalibrationService
	Save *service.SaveDeltaService
}

func NewZmqApi(services Services, logger logrus.FieldLogger) *ZmqApi {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZmqApi{
		socket:   zmq4.NewRep(ctx),
		services: &services,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.WithField("component", "zmq_api"),
	}
}

// Listen binds address and serves requests until Close is called.
func (z *ZmqApi) Listen(address string) error {
	if err := z.socket.Listen(address); err != nil {
		return errors.Wrapf(err, "listen on %s", address)
	}
	z.logger.WithField("address", address).Info("zmq api listening")

	for {
		msg, err := z.socket.Recv()
		if err != nil {
			if errors.Is(err, zmq4.ErrClosedConn) || z.ctx.Err() != nil {
				return nil
			}
			z.logger.WithError(err).Warn("receive request")
			continue
		}

		var req ApiRequest
		response := ApiResponse{}
		if err := json.Unmarshal(msg.Bytes(), &req); err != nil {
			response.Error = errors.Wrapf(domain.ErrBadParam, "unmarshal request: %v", err).Error()
		} else {
			response = z.processRequest(&req)
		}
		if err := z.socket.Send(z.marshal(response)); err != nil {
			z.logger.WithError(err).Warn("send response")
		}
	}
}

func (z *ZmqApi) processRequest(req *ApiRequest) ApiResponse {
	switch req.Action {
	case GetMap:
		kv, err := domain.ParseKeyVectorString(req.KeyString)
		if err != nil {
			return failure(err)
		}
		result, err := z.services.Get.Execute(service.GetCalibrationQuery{KeyVector: kv})
		if err != nil {
			return failure(err)
		}
		if !result.Found {
			return ApiResponse{Success: false}
		}
		return ApiResponse{Maps: []dto.CalibrationMap{dto.CalibrationMapFrom(result.Map)}, Success: true}

	case SetMap:
		if req.Map == nil {
			return failure(errors.Wrap(domain.ErrBadParam, "set request has no map"))
		}
		result, err := z.services.Set.Execute(service.SetCalibrationCommand{Map: req.Map.ToDeltaDataMap()})
		if err != nil {
			return failure(err)
		}
		return ApiResponse{
			Maps:    []dto.CalibrationMap{dto.CalibrationMapFrom(result.Map)},
			Saved:   result.Saved,
			Success: true,
		}

	case ListMaps:
		maps, err := z.services.List.Execute()
		if err != nil {
			return failure(err)
		}
		response := ApiResponse{Success: true}
		for _, m := range maps {
			response.Maps = append(response.Maps, dto.CalibrationMapFrom(m))
		}
		return response

	case SaveDelta:
		result, err := z.services.Save.Execute()
		if err != nil {
			return failure(err)
		}
		return ApiResponse{Saved: result.Saved, Success: true}

	default:
		return failure(errors.Wrapf(domain.ErrUnsupported, "action %q", req.Action))
	}
}

func failure(err error) ApiResponse {
	return ApiResponse{Success: false, Error: err.Error()}
}

func (z *ZmqApi) marshal(response ApiResponse) zmq4.Msg {
	payload, err := json.Marshal(response)
	if err != nil {
		z.logger.WithError(err).Error("marshal response")
		payload = []byte(`{"success":false}`)
	}
	return zmq4.NewMsg(payload)
}

func (z *ZmqApi) Close() error {
	z.cancel()
	return z.socket.Close()
}
