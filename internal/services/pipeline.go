package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"

	"clipper_app_echo/internal/config"
)

// ProcessVideoEvent is the hand-off to the external processing pipeline. The
// pipeline owns everything past this point; no response is waited for.
type ProcessVideoEvent struct {
	UploadID uint   `json:"upload_id"`
	UserID   uint   `json:"user_id"`
	S3Key    string `json:"s3_key"`
}

// VideoEventPublisher is the pipeline-trigger surface handlers depend on.
type VideoEventPublisher interface {
	PublishProcessVideo(event ProcessVideoEvent)
}

// PipelineProducer publishes processing requests to Kafka.
type PipelineProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPipelineProducer(cfg config.Config) (*PipelineProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll

	var producer sarama.SyncProducer
	var err error

	for i := 1; i <= 10; i++ {
		producer, err = sarama.NewSyncProducer([]string{cfg.KafkaBroker}, sc)
		if err == nil {
			log.Println("Kafka producer initialized")
			return &PipelineProducer{producer: producer, topic: cfg.ProcessVideoTopic}, nil
		}
		log.Printf("Waiting for Kafka... (%d/10) Error: %v", i, err)
		time.Sleep(5 * time.Second)
	}

	return nil, err
}

// PublishProcessVideo is fire-and-forget: publish failures are logged and the
// upload stays queued until a later retrigger, but the caller never sees an
// error.
func (p *PipelineProducer) PublishProcessVideo(event ProcessVideoEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", p.topic, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Printf("Failed to publish %s event for upload %d: %v", p.topic, event.UploadID, err)
		return
	}

	log.Printf("Published %s event for upload %d", p.topic, event.UploadID)
}

func (p *PipelineProducer) Close() error {
	return p.producer.Close()
}
