package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/observability"
	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"go.uber.org/zap"
)

type eventEnvelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Poller tails the outbox and fans events out to hub subscribers. The offset
// lives in memory; on restart subscribers replay from the moment the poller
// comes back, which is acceptable for display panels that always render the
// latest state.
type Poller struct {
	store    store.AttendanceStore
	hub      *Hub
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
	batch    int

	after   time.Time
	afterID string
}

func NewPoller(st store.AttendanceStore, h *Hub, logger *zap.Logger, metrics *observability.Metrics, interval time.Duration, batch int) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Poller{
		store:    st,
		hub:      h,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		batch:    batch,
		after:    time.Now().UTC(),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	events, err := p.store.ListOutboxEvents(pollCtx, p.after, p.afterID, p.batch)
	if err != nil {
		p.logger.Warn("outbox poll failed", zap.Error(err))
		return
	}
	for _, event := range events {
		p.after = event.CreatedAt
		p.afterID = event.EventID
		env := eventEnvelope{Type: event.Type, Payload: event.Payload, CreatedAt: event.CreatedAt}
		payload, err := json.Marshal(env)
		if err != nil {
			p.logger.Warn("marshal event failed", zap.String("event_id", event.EventID), zap.Error(err))
			continue
		}
		p.hub.Broadcast(payload, extractMeta(event.Payload))
		p.metrics.IncrEventPublished()
	}
}

func extractMeta(payload []byte) Subscription {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return Subscription{}
	}
	return Subscription{
		SectorID:       str(data["sector_id"]),
		ServicePointID: str(data["service_point_id"]),
	}
}

func str(value interface{}) string {
	if v, ok := value.(string); ok {
		return v
	}
	return ""
}
