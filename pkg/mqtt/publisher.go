package mqtt

import (
	"encoding/json"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the publish side used by the actuator gateway.
type IPublisher interface {
	Publish(topic string, payload any) error
	Close()
}

// Publisher marshals payloads to JSON and publishes them at QoS 0.
type Publisher struct {
	client pahomqtt.Client
}

func NewPublisher(client pahomqtt.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	token := p.client.Publish(topic, 0, false, b)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
