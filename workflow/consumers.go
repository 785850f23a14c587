package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"cloud.google.com/go/pubsub"
	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/sirupsen/logrus"
)

// PushRequest is the envelope Pub/Sub posts to a push subscription endpoint.
type PushRequest struct {
	Message struct {
		Data        []byte            `json:"data"`
		ID          string            `json:"messageId"`
		Attributes  map[string]string `json:"attributes"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodePushMessage unwraps a push body into the event it carries. The
// broker message id stands in for a missing correlation id.
func DecodePushMessage(body []byte) (config.EventMessage, error) {
	var req PushRequest
	var m config.EventMessage
	// byte slice unmarshalling handles base64 decoding.
	if err := json.Unmarshal(body, &req); err != nil {
		return m, err
	}
	if len(req.Message.Data) == 0 {
		return m, errors.New("push message has no data")
	}
	if err := json.Unmarshal(req.Message.Data, &m); err != nil {
		return m, err
	}
	if m.ID <= 0 || m.EventType == "" {
		return m, ErrInvalidEventMessage
	}
	if m.CorrelationId == "" {
		m.CorrelationId = req.Message.ID
	}
	return m, nil
}

// RunPubSubConsumer pulls from PUBSUB_SUBSCRIPTION until ctx is done.
func RunPubSubConsumer(ctx context.Context, logger *logrus.Logger) error {
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(ctx, client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		var m config.EventMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			config.LogError(logger, "consumers.go", "RunPubSubConsumer", "Unmarshaling pubsub message", string(msg.Data), err)
			msg.Ack()
			return
		}
		if m.CorrelationId == "" {
			m.CorrelationId = msg.ID
		}
		if err := ProcessMessage(ctx, logger, m); err != nil {
			if errors.Is(err, ErrInvalidEventMessage) {
				msg.Ack()
				return
			}
			logger.WithFields(logrus.Fields{
				"field":          "RunPubSubConsumer",
				"event_type":     m.EventType,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, "consumers.go", "RunPubSubConsumer", "Failed to receive messages", nil, err)
		}
	}()
	return nil
}

// RunRabbitMQConsumer consumes the events queue in the background until ctx is done.
func RunRabbitMQConsumer(ctx context.Context, logger *logrus.Logger) {
	go func() {
		err := config.ConsumeRabbitMQ(ctx, func(ctx context.Context, m config.EventMessage) error {
			err := ProcessMessage(ctx, logger, m)
			if errors.Is(err, ErrInvalidEventMessage) {
				return nil
			}
			return err
		})
		if err != nil {
			config.LogError(logger, "consumers.go", "RunRabbitMQConsumer", "consume rabbitmq", config.RabbitQueue(), err)
		}
	}()
}
