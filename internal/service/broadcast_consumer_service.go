package service

import (
	"context"
	"encoding/json"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Deliverer fans a broadcast envelope out to connected clients. The
// websocket hub implements this; replica fan-out happens behind it.
type Deliverer interface {
	Deliver(env *dto.BroadcastEnvelope)
}

type IBroadcastConsumerService interface {
	Start(ctx context.Context) error
}

// BroadcastConsumerService drains the broadcast topic and hands each
// envelope to the deliverer. Decoupling delivery from the sequencer keeps
// slow sockets from stalling sequence assignment.
type BroadcastConsumerService struct {
	subscriber message.Subscriber
	topic      string
	deliverer  Deliverer
	log        logger.ILogger
}

func NewBroadcastConsumerService(subscriber message.Subscriber, topic string, deliverer Deliverer, log logger.ILogger) IBroadcastConsumerService {
	return &BroadcastConsumerService{
		subscriber: subscriber,
		topic:      topic,
		deliverer:  deliverer,
		log:        log,
	}
}

func (s *BroadcastConsumerService) Start(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return err
	}

	go s.process(messages)

	s.log.Info("BroadcastConsumer", "listening on broadcast topic", map[string]interface{}{
		"topic": s.topic,
	})
	return nil
}

func (s *BroadcastConsumerService) process(messages <-chan *message.Message) {
	for msg := range messages {
		var env dto.BroadcastEnvelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			s.log.Error("BroadcastConsumer", "dropping undecodable envelope", map[string]interface{}{
				"message_id": msg.UUID,
				"error":      err.Error(),
			})
			msg.Ack()
			continue
		}

		s.deliverer.Deliver(&env)
		msg.Ack()
	}
}
