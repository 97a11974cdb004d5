package service

import (
	"context"
	"encoding/json"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// IPublisherService pushes broadcast envelopes onto the in-process
// delivery topic. The sequencer is its only producer.
type IPublisherService interface {
	PublishBroadcast(ctx context.Context, env *dto.BroadcastEnvelope) error
}

type PublisherService struct {
	publisher message.Publisher
	topic     string
	log       logger.ILogger
}

func NewPublisherService(publisher message.Publisher, topic string, log logger.ILogger) IPublisherService {
	return &PublisherService{
		publisher: publisher,
		topic:     topic,
		log:       log,
	}
}

func (s *PublisherService) PublishBroadcast(ctx context.Context, env *dto.BroadcastEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.log.Error("Publisher", "failed to publish broadcast envelope", map[string]interface{}{
			"session_id": env.SessionId.String(),
			"error":      err.Error(),
		})
		return err
	}
	return nil
}
