package bootstrap

import (
	"context"

	"ACDB/internal/application/service"
	"ACDB/internal/domain"
	"ACDB/internal/platform/api/zmq"
	"ACDB/internal/platform/config"
	"ACDB/internal/platform/messaging/zeromq/listener"
	"ACDB/internal/platform/messaging/zeromq/message"
	"ACDB/internal/platform/messaging/zeromq/publisher"
	"ACDB/internal/platform/repository/acdbfile"
	"ACDB/internal/platform/repository/delta"
	"ACDB/internal/platform/repository/heap"
	"ACDB/internal/platform/server"
	"ACDB/internal/platform/server/handler/calibration"
	"ACDB/internal/platform/server/handler/database"
	deltahandler "ACDB/internal/platform/server/handler/delta"

	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
)

func Run() (bool, error) {
	container, err := BuildContainer()
	if err != nil {
		return false, err
	}
	err = container.Invoke(func(cfg config.Config,
		s *server.Server,
		open *service.OpenDatabaseService,
		settings *service.DeltaSettingsService,
		reload *service.ReloadDeltaService,
		api *zmq.ZmqApi,
		logger logrus.FieldLogger) error {
		settings.SetPersistence(cfg.PersistEnabled)
		for _, path := range cfg.AcdbFiles {
			if _, err := open.Execute(service.OpenDatabaseCommand{Path: path}); err != nil {
				logger.WithError(err).WithField("path", path).Error("open database")
			}
		}
		if cfg.ZmqSubAddress != "" {
			go listenForPeerDeltas(cfg.ZmqSubAddress, reload, logger)
		}
		if cfg.ZmqApiAddress != "" {
			go func() {
				if err := api.Listen(cfg.ZmqApiAddress); err != nil {
					logger.WithError(err).Error("zmq api stopped")
				}
			}()
		}
		return s.Run()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// BuildContainer registers every constructor of the service.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()
	serviceConstructors := []interface{}{
		config.LoadConfig,
		config.NewLogger,
		domain.NewContextManager,
		fileManager,
		heapManager,
		deltaNotifier,
		deltaManager,
		databaseSettings,
		service.NewOpenDatabaseService,
		service.NewCloseDatabaseService,
		service.NewSetActiveDatabaseService,
		service.NewSetCalibrationService,
		service.NewGetCalibrationService,
		service.NewListCalibrationService,
		service.NewSaveDeltaService,
		service.NewDeltaSettingsService,
		service.NewHeapInfoService,
		service.NewReloadDeltaService,
		database.NewDatabaseHandler,
		calibration.NewCalibrationHandler,
		deltahandler.NewDeltaHandler,
		server.NewServer,
		zmqApi,
	}
	for _, constructor := range serviceConstructors {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}
	return container, nil
}

func fileManager() *acdbfile.Manager {
	return acdbfile.NewManager(heap.DefaultMaxDatabases)
}

func heapManager(cfg config.Config, contexts *domain.ContextManager, logger logrus.FieldLogger) *heap.Manager {
	m := heap.NewManager(contexts, heap.Options{ClampSlots: cfg.ClampDatabaseSlots}, logger)
	m.Init()
	return m
}

func deltaManager(cfg config.Config, heaps *heap.Manager, contexts *domain.ContextManager,
	files *acdbfile.Manager, notifier domain.DeltaSaveNotifier, logger logrus.FieldLogger) *delta.Manager {
	m := delta.NewManager(heaps, contexts, files, notifier, delta.Options{
		ClampSlots: cfg.ClampDatabaseSlots,
		Version:    delta.CurrentFileVersion,
	}, logger)
	m.Init()
	return m
}

func deltaNotifier(cfg config.Config, logger logrus.FieldLogger) domain.DeltaSaveNotifier {
	if cfg.ZmqPubAddress == "" {
		return domain.NoopNotifier{}
	}
	broadcaster := publisher.NewZeroMQDeltaBroadcaster(cfg.VmID, logger)
	if err := broadcaster.Listen(cfg.ZmqPubAddress); err != nil {
		logger.WithError(err).WithField("address", cfg.ZmqPubAddress).
			Warn("delta publisher unavailable, saves will not be broadcast")
		broadcaster.Close()
		return domain.NoopNotifier{}
	}
	return broadcaster
}

func databaseSettings(cfg config.Config) service.DatabaseSettings {
	return service.DatabaseSettings{
		VmID:           cfg.VmID,
		DeltaDirectory: cfg.DeltaDirectory,
	}
}

func zmqApi(get *service.GetCalibrationService, set *service.SetCalibrationService,
	list *service.ListCalibrationService, save *service.SaveDeltaService, logger logrus.FieldLogger) *zmq.ZmqApi {
	return zmq.NewZmqApi(zmq.Services{Get: get, Set: set, List: list, Save: save}, logger)
}

func listenForPeerDeltas(address string, reload *service.ReloadDeltaService, logger logrus.FieldLogger) {
	l := listener.NewZeromqDeltaSavedListener(context.Background(), logger)
	if err := l.Dial(address); err != nil {
		logger.WithError(err).Error("subscribe to peer deltas")
		return
	}
	l.Listen(func(msg message.DeltaSavedMessage) {
		result := reload.Execute(service.ReloadDeltaCommand{Path: msg.Path})
		logger.WithFields(logrus.Fields{
			"path":     msg.Path,
			"reloaded": result.Reloaded,
		}).Debug("peer delta saved")
	})
}
