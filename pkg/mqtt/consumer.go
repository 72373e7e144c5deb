package mqtt

import (
	"context"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one message from one topic.
type Handler func(topic string, message pahomqtt.Message) error

// IConsumer is the subscription side used by the ingest service.
type IConsumer interface {
	Consume(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes to a set of topic filters on a shared client and
// dispatches every message to a single handler.
type Consumer struct {
	client  pahomqtt.Client
	topics  []string
	qos     byte
	handler Handler
	logger  *zap.Logger
}

func NewConsumer(client pahomqtt.Client, topics []string, qos byte, logger *zap.Logger) *Consumer {
	return &Consumer{client: client, topics: topics, qos: qos, logger: logger}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// Consume subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) Consume(ctx context.Context) {
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, c.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
			if c.handler == nil {
				c.logger.Warn("no handler set", zap.String("topic", topic))
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				c.logger.Error("message handling failed", zap.String("topic", msg.Topic()), zap.Error(err))
			}
		})
		if token.Wait() && token.Error() != nil {
			c.logger.Error("subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
			continue
		}
		c.logger.Info("subscribed", zap.String("topic", topic))
	}

	<-ctx.Done()

	for _, topic := range c.topics {
		c.client.Unsubscribe(topic).Wait()
	}
}
