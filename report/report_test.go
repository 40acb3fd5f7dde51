package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/models"
	"github.com/use-agent/opinionprobe/webhook"
)

func sampleReport() *models.RunReport {
	results := []models.ConfigurationResult{
		{Label: "Chrome Windows 10", Status: models.StatusPassed, ArticlesScraped: 5, DurationSeconds: 12.346},
		{Label: "Safari iPhone 13", Status: models.StatusPartial, ArticlesScraped: 2, DurationSeconds: 3.1},
		{Label: "Firefox Windows 11", Status: models.StatusFailed, Error: "SESSION_ACQUIRE_FAILED: hub refused"},
	}
	return &models.RunReport{ID: "run-1", Results: results, Summary: models.Summarize(results)}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "TEST RESULTS SUMMARY")
	assert.Contains(t, out, "✓ Chrome Windows 10\n  Status: Passed\n  Articles Scraped: 5\n  Duration: 12.35s\n")
	assert.Contains(t, out, "✗ Safari iPhone 13\n  Status: Partial\n")
	assert.Contains(t, out, "✗ Firefox Windows 11\n  Status: Failed\n  Articles Scraped: 0\n  Error: SESSION_ACQUIRE_FAILED: hub refused\n")
	assert.NotContains(t, out, "Duration: 0.00s")
	assert.Contains(t, out, "Total Tests: 3\nPassed: 1\nPartial: 1\nFailed: 1\n")
}

func TestWriteDetails(t *testing.T) {
	rep := sampleReport()
	rep.Results[0].Articles = []models.ArticleRecord{
		{Ordinal: 1, URL: "https://elpais.com/opinion/a.html", Title: "La crisis", Content: "Texto", ImageRef: "article_images/article_1_cover.jpg"},
	}
	rep.Results[0].TranslatedTitles = []string{"The crisis"}
	rep.Results[0].RepeatedWords = []models.WordFrequencyEntry{{Word: "crisis", Count: 3}}

	var buf bytes.Buffer
	require.NoError(t, WriteDetails(&buf, rep))
	out := buf.String()

	assert.Contains(t, out, "Article 1\nTitle: La crisis\n")
	assert.Contains(t, out, "Image: article_images/article_1_cover.jpg")
	assert.Contains(t, out, "1. The crisis")
	assert.Contains(t, out, "crisis: 3 occurrences")
	assert.NotContains(t, out, "Safari iPhone 13")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteSummary_PropagatesWriteError(t *testing.T) {
	assert.ErrorIs(t, WriteSummary(failingWriter{}, sampleReport()), io.ErrClosedPipe)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{topic: "reports", writer: w}

	require.NoError(t, sink.Publish(context.Background(), sampleReport()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "run-1", string(w.msgs[0].Key))

	var decoded models.RunReport
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, 3, decoded.Summary.Total)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestWebhookSink_Publish(t *testing.T) {
	var ev webhook.Event
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sig = r.Header.Get(webhook.SignatureHeader)
		_ = json.Unmarshal(body, &ev)
		assert.Equal(t, webhook.Sign("k", body), sig)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "k")
	require.NoError(t, sink.Publish(context.Background(), sampleReport()))
	assert.Equal(t, webhook.EventRunCompleted, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	assert.NotEmpty(t, sig)
}

func TestPublish_ContinuesPastFailures(t *testing.T) {
	bad := &KafkaSink{topic: "a", writer: &fakeWriter{err: errors.New("broker down")}}
	good := &fakeWriter{}
	sinks := []Sink{bad, &KafkaSink{topic: "b", writer: good}}

	err := Publish(context.Background(), sinks, sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, good.msgs, 1)
}

func TestBuildSinks(t *testing.T) {
	assert.Empty(t, BuildSinks(config.ReportConfig{}))

	sinks := BuildSinks(config.ReportConfig{
		WebhookURL:   "https://hooks.example.com/probe",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "opinionprobe.reports",
	})
	require.Len(t, sinks, 2)
	assert.Equal(t, "webhook", sinks[0].Name())
	assert.Equal(t, "kafka:opinionprobe.reports", sinks[1].Name())
	CloseAll(sinks)
}

func TestWebhookSink_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "")
	sink.delays = []time.Duration{0, time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, sink.Publish(ctx, sampleReport()))
}
