package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

const (
	StreamName     = "MODERATION"
	SubjectPattern = "moderation.>" // Tous les events moderation.*
)

// NatsBroker publie les franchissements de palier sur JetStream.
// Le stream est persistant : le collaborateur d'action de modération
// (masquage de contenu) peut consommer en retard sans rien perdre.
type NatsBroker struct {
	js jetstream.JetStream
}

// NewNatsBroker s'assure que le Stream existe (idempotent).
func NewNatsBroker(nc *nats.Conn) (*NatsBroker, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage, // Persistance sur disque (Important !)
		Replicas: 1,                     // Mettre 3 en cluster
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{js: js}, nil
}

// TargetModeratedEvent est le contrat implicite avec les consommateurs
// (notification-service, post-service pour le masquage).
type TargetModeratedEvent struct {
	Category   string    `json:"category"`
	TargetID   string    `json:"target_id"`
	Verdict    string    `json:"verdict"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (n *NatsBroker) PublishTargetFlagged(ctx context.Context, target domain.ReportTarget) error {
	return n.publish(ctx, "moderation.target.flagged", target, domain.VerdictFlagged)
}

func (n *NatsBroker) PublishTargetRemoved(ctx context.Context, target domain.ReportTarget) error {
	return n.publish(ctx, "moderation.target.removed", target, domain.VerdictRemoved)
}

func (n *NatsBroker) publish(ctx context.Context, subject string, target domain.ReportTarget, verdict domain.Verdict) error {
	event := TargetModeratedEvent{
		Category:   string(target.Category),
		TargetID:   target.ID,
		Verdict:    string(verdict),
		OccurredAt: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// Injection du trace-id dans les headers NATS pour suivre la chaîne
	// signalement -> verdict -> masquage dans Jaeger.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if _, err := n.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
