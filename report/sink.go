package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/models"
	"github.com/use-agent/opinionprobe/webhook"
)

// Sink receives finished run reports.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rep *models.RunReport) error
	Close() error
}

// Publish sends rep to every sink. A failing sink is logged and does not
// stop the others; the joined error is returned.
func Publish(ctx context.Context, sinks []Sink, rep *models.RunReport) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, rep); err != nil {
			slog.Warn("report publish failed", "sink", s.Name(), "run_id", rep.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		slog.Info("report published", "sink", s.Name(), "run_id", rep.ID)
	}
	return errors.Join(errs...)
}

// CloseAll closes every sink, logging failures.
func CloseAll(sinks []Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			slog.Warn("closing report sink failed", "sink", s.Name(), "error", err)
		}
	}
}

// BuildSinks creates the sinks enabled in cfg.
func BuildSinks(cfg config.ReportConfig) []Sink {
	var sinks []Sink
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, cfg.WebhookSecret))
	}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	return sinks
}

// WebhookSink posts reports as signed run.completed events.
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
}

// NewWebhookSink creates a sink posting to url, signing with secret when set.
func NewWebhookSink(url, secret string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: webhook.DefaultRetryDelays,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Publish(ctx context.Context, rep *models.RunReport) error {
	ev := &webhook.Event{
		Type:      webhook.EventRunCompleted,
		RunID:     rep.ID,
		Timestamp: time.Now().Unix(),
		Data:      rep,
	}
	return webhook.DeliverWithRetry(ctx, s.client, s.url, s.secret, ev, s.delays)
}

func (s *WebhookSink) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each report as one JSON message keyed by run ID.
type KafkaSink struct {
	topic  string
	writer messageWriter
}

// NewKafkaSink creates a synchronous producer for topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }

func (s *KafkaSink) Publish(ctx context.Context, rep *models.RunReport) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rep.ID),
		Value: body,
		Time:  time.Now(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message to kafka: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
