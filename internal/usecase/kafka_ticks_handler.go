package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TickWatch/internal/domain/models"
	domrepo "TickWatch/internal/domain/repository"
	pkgkafka "TickWatch/pkg/kafka"
)

// KafkaTicksHandler consumes tick messages from Kafka and runs them
// through the pipeline, so bus-fed ticks get the same detection and
// alerting as polled ones.
type KafkaTicksHandler struct {
	topic    string
	pipeline *Pipeline
	metrics  domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, pipeline *Pipeline, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, pipeline: pipeline, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, o, h, l, c, v}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	tick := &models.Tick{
		Symbol:    m.Symbol,
		Timestamp: time.Unix(m.T, 0).UTC(),
		Open:      m.O,
		High:      m.H,
		Low:       m.L,
		Close:     m.C,
		Volume:    m.V,
	}
	if tick.Open == 0 {
		tick.Open = tick.Close
	}
	if tick.High == 0 {
		tick.High = tick.Close
	}
	if tick.Low == 0 {
		tick.Low = tick.Close
	}

	start := time.Now()
	err := h.pipeline.ProcessTick(ctx, tick)
	h.metrics.RecordLatency("consumer_process_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
