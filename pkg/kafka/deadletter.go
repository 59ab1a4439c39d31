// Package kafka 提供死信消息的生产者。
// 消息级致命失败（文件丢失、分块不存在、畸形载荷）不再被静默丢弃，
// 而是连同失败原因发布到死信主题，供离线排查和补偿。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"vector-pipeline-go/internal/config"
	"vector-pipeline-go/pkg/log"
)

// DeadLetter 是发布到死信主题的消息结构。
type DeadLetter struct {
	Queue    string          `json:"queue"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}

// DeadLetterSink 抽象了死信发布，便于 worker 测试替换。
type DeadLetterSink interface {
	Publish(ctx context.Context, queueName string, payload json.RawMessage, reason string) error
}

// DeadLetterProducer 将死信写入 Kafka 主题。
type DeadLetterProducer struct {
	writer *kafka.Writer
}

// NewDeadLetterProducer 初始化死信生产者。
func NewDeadLetterProducer(cfg config.KafkaConfig) *DeadLetterProducer {
	return &DeadLetterProducer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers),
			Topic:    cfg.DeadLetterTopic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish 发布一条死信。发布失败只记日志：死信通道自身不参与重试语义。
func (p *DeadLetterProducer) Publish(ctx context.Context, queueName string, payload json.RawMessage, reason string) error {
	msg := DeadLetter{
		Queue:    queueName,
		Payload:  payload,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(queueName),
		Value: msgBytes,
	}); err != nil {
		log.Errorf("[DeadLetter] 发布死信失败, queue: %s, reason: %s, error: %v", queueName, reason, err)
		return err
	}
	log.Warnf("[DeadLetter] 消息已进入死信主题, queue: %s, reason: %s", queueName, reason)
	return nil
}

// Close 关闭底层 writer。
func (p *DeadLetterProducer) Close() error {
	return p.writer.Close()
}
