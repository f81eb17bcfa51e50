package trigger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
)

// Publisher fans a trigger request out onto Pulsar, one message per trial.
// Producers are created per topic and cached for the life of the publisher.
type Publisher struct {
	client    pulsar.Client
	producers map[string]pulsar.Producer
}

func NewPublisher(config configuration.PulsarConfig) (*Publisher, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: config.URL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to pulsar at %s", config.URL)
	}
	return &Publisher{
		client:    client,
		producers: make(map[string]pulsar.Producer),
	}, nil
}

// Publish expands the request into per-trial events and publishes each one.
// It returns the number of events published.
func (p *Publisher) Publish(ctx context.Context, request Request) (int, error) {
	producer, err := p.producer(request.Topic)
	if err != nil {
		return 0, err
	}

	events := request.Events(time.Now().Unix())
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return 0, errors.Wrap(err, "marshalling trigger event")
		}
		if _, err := producer.Send(ctx, &pulsar.ProducerMessage{Payload: payload}); err != nil {
			return 0, errors.Wrapf(err, "publishing trigger event %d to %s", event.SimID, request.Topic)
		}
	}
	log.Infof("Published %d %s simulation events to %s", len(events), request.StormType, request.Topic)
	return len(events), nil
}

func (p *Publisher) producer(topic string) (pulsar.Producer, error) {
	if producer, ok := p.producers[topic]; ok {
		return producer, nil
	}
	producer, err := p.client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
	if err != nil {
		return nil, errors.Wrapf(err, "creating producer for topic %s", topic)
	}
	p.producers[topic] = producer
	return producer, nil
}

// Close tears down the producers and the client connection.
func (p *Publisher) Close() {
	for _, producer := range p.producers {
		producer.Close()
	}
	p.client.Close()
}
