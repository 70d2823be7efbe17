package listener

import (
	"context"
	"time"

	"ACDB/internal/platform/messaging/zeromq/message"
	"ACDB/internal/platform/messaging/zeromq/publisher"

	"github.com/go-zeromq/zmq4"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type DeltaSavedHandler func(msg message.DeltaSavedMessage)

// ZeromqDeltaSavedListener receives delta_saved messages from peer
// publishers, for example another VM sharing the same delta directory.
type ZeromqDeltaSavedListener struct {
	sub    zmq4.Socket
	logger logrus.FieldLogger
}

func NewZeromqDeltaSavedListener(ctx context.Context, logger logrus.FieldLogger) *ZeromqDeltaSavedListener {
	reconnectOpt := zmq4.WithAutomaticReconnect(true)
	retryOpt := zmq4.WithDialerRetry(time.Second * 5)
	sub := zmq4.NewSub(ctx, reconnectOpt, retryOpt)
	sub.SetOption(zmq4.OptionSubscribe, publisher.DeltaSavedTopic)

	return &ZeromqDeltaSavedListener{
		sub:    sub,
		logger: logger.WithField("component", "delta_saved_listener"),
	}
}

func (z *ZeromqDeltaSavedListener) Dial(address string) error {
	if err := z.sub.Dial(address); err != nil {
		return errors.Wrapf(err, "dial %s", address)
	}
	return nil
}

// Listen blocks until the socket is closed, passing every decodable message
// to handler.
func (z *ZeromqDeltaSavedListener) Listen(handler DeltaSavedHandler) {
	z.logger.Info("listening for delta_saved messages")
	for {
		msg, err := z.sub.Recv()
		if err != nil {
			if errors.Is(err, zmq4.ErrClosedConn) || errors.Is(err, context.Canceled) {
				z.logger.Info("socket closed, exiting listener")
				return
			}
			z.logger.WithError(err).Warn("receive delta_saved message")
			continue
		}
		if len(msg.Frames) < 2 || string(msg.Frames[0]) != publisher.DeltaSavedTopic {
			continue
		}
		m, err := unmarshalDeltaSavedMessage(msg.Frames[1])
		if err != nil {
			z.logger.WithError(err).Warn("drop malformed delta_saved message")
			continue
		}
		handler(m)
	}
}

func (z *ZeromqDeltaSavedListener) Close() error {
	return z.sub.Close()
}

func unmarshalDeltaSavedMessage(data []byte) (message.DeltaSavedMessage, error) {
	var m message.DeltaSavedMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return message.DeltaSavedMessage{}, errors.Wrap(err, "unmarshal delta_saved message")
	}
	return m, nil
}
