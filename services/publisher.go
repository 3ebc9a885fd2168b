package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"cleanzone-api/models"
)

// StateChangePublisher hands status changes to the push-notification pipeline.
type StateChangePublisher interface {
	Publish(ctx context.Context, msg models.StateChangeMessage) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *logrus.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *logrus.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	log.WithFields(logrus.Fields{"brokers": brokers, "topic": topic}).Info("kafka publisher configured")
	return &KafkaPublisher{writer: writer, log: log}
}

// Publish keys messages by entity so changes to one entity stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, msg models.StateChangeMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode state change: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Entity + ":" + strconv.FormatUint(uint64(msg.EntityID), 10)),
		Value: value,
		Time:  msg.ChangedAt,
	})
	if err != nil {
		return fmt.Errorf("write state change: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when kafka is disabled.
type LogPublisher struct {
	log *logrus.Logger
}

func NewLogPublisher(log *logrus.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg models.StateChangeMessage) error {
	p.log.WithFields(logrus.Fields{
		"entity":    msg.Entity,
		"entity_id": msg.EntityID,
		"status":    msg.Status,
	}).Debug("state change")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
