package publisher

import (
	"context"
	"time"

	"ACDB/internal/domain"
	"ACDB/internal/platform/messaging/zeromq/message"

	"github.com/go-zeromq/zmq4"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DeltaSavedTopic = "delta_saved"

// ZeroMQDeltaBroadcaster publishes a message every time a delta file is
// saved.
type ZeroMQDeltaBroadcaster struct {
	pub    zmq4.Socket
	vmID   uint32
	logger logrus.FieldLogger
}

func NewZeroMQDeltaBroadcaster(vmID uint32, logger logrus.FieldLogger) *ZeroMQDeltaBroadcaster {
	reconnectOpt := zmq4.WithAutomaticReconnect(true)
	retryOpt := zmq4.WithDialerRetry(time.Second * 5)
	socket := zmq4.NewPub(context.Background(), reconnectOpt, retryOpt)

	return &ZeroMQDeltaBroadcaster{
		pub:    socket,
		vmID:   vmID,
		logger: logger.WithField("component", "delta_broadcaster"),
	}
}

func (b *ZeroMQDeltaBroadcaster) Listen(address string) error {
	if err := b.pub.Listen(address); err != nil {
		b.logger.WithError(err).WithField("address", address).Error("start delta publisher")
		return errors.Wrapf(err, "listen on %s", address)
	}
	b.logger.WithField("address", address).Info("started delta publisher")
	return nil
}

func (b *ZeroMQDeltaBroadcaster) NotifyDeltaSaved(event domain.DeltaSavedEvent) error {
	payload, err := MarshalDeltaSavedMessage(message.DeltaSavedMessageFrom(event, b.vmID))
	if err != nil {
		return err
	}
	return b.pub.Send(zmqMessage(DeltaSavedTopic, payload))
}

func (b *ZeroMQDeltaBroadcaster) Close() error {
	return b.pub.Close()
}

func zmqMessage(topic string, payload []byte) zmq4.Msg {
	return zmq4.NewMsgFrom(
		[][]byte{
			[]byte(topic),
			payload,
		}...,
	)
}

func MarshalDeltaSavedMessage(msg message.DeltaSavedMessage) ([]byte, error) {
	return json.Marshal(msg)
}
