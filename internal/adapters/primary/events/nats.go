package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
)

// Sujets consommés par le trust-service. Chaque commande porte le bearer
// token du client : l'AuthGate est le seul à en déduire l'identité, le
// gateway ne fait que transporter.
const (
	SubjectReportFiled  = "trust.report.filed"
	SubjectFollowToggle = "trust.follow.toggle"
	SubjectFollowList   = "trust.follow.list"
)

// EventHandler est l'adapter Driving asynchrone (pendant NATS du gRPC).
type EventHandler struct {
	gate       ports.AuthGate
	follows    ports.FollowService
	moderation ports.ModerationService
}

func NewEventHandler(gate ports.AuthGate, follows ports.FollowService, moderation ports.ModerationService) *EventHandler {
	return &EventHandler{gate: gate, follows: follows, moderation: moderation}
}

// start extrait le contexte de trace des headers NATS et ouvre un span
// consumer, comme le fait le feed-service pour post.created.
func start(msg *nats.Msg, name string) (context.Context, trace.Span, context.CancelFunc) {
	ctx := context.Background()
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))

	tracer := otel.Tracer("trust-service")
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindConsumer))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	return ctx, span, cancel
}

type ReportFiledEvent struct {
	Token    string `json:"token"`
	Category string `json:"category"`
	TargetID string `json:"target_id"`
	Reason   string `json:"reason,omitempty"`
}

func (h *EventHandler) HandleReportFiled(msg *nats.Msg) {
	ctx, span, cancel := start(msg, "process_report_filed")
	defer span.End()
	defer cancel()

	var event ReportFiledEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("invalid report event format", "error", err)
		return
	}

	// Checkpoint obligatoire avant toute mutation.
	reporter, err := h.gate.Authorize(ctx, event.Token, time.Now())
	if err != nil {
		span.RecordError(err)
		slog.Warn("report rejected at auth gate", "target_id", event.TargetID, "error", err)
		return
	}

	verdict, err := h.moderation.FileReport(ctx, ports.FileReportCmd{
		ReporterEmail: reporter.Email,
		Category:      domain.ReportCategory(event.Category),
		TargetID:      event.TargetID,
		Reason:        event.Reason,
	})
	if err != nil {
		span.RecordError(err)
		slog.Error("report filing failed", "reporter", reporter.Email, "target_id", event.TargetID, "error", err)
		return
	}

	slog.Info("report filed", "reporter", reporter.Email, "target_id", event.TargetID, "verdict", verdict)
}

type FollowToggleEvent struct {
	Token         string `json:"token"`
	FolloweeEmail string `json:"followee"`
}

type FollowToggleReply struct {
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleFollowToggle supporte le request/reply NATS : si le gateway attend
// une réponse, il reçoit l'issue du toggle (followed/unfollowed).
func (h *EventHandler) HandleFollowToggle(msg *nats.Msg) {
	ctx, span, cancel := start(msg, "process_follow_toggle")
	defer span.End()
	defer cancel()

	var event FollowToggleEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("invalid follow event format", "error", err)
		return
	}

	follower, err := h.gate.Authorize(ctx, event.Token, time.Now())
	if err != nil {
		span.RecordError(err)
		slog.Warn("follow toggle rejected at auth gate", "error", err)
		h.reply(msg, FollowToggleReply{Error: "unauthenticated"})
		return
	}

	outcome, err := h.follows.ToggleFollow(ctx, follower.Email, event.FolloweeEmail)
	if err != nil {
		span.RecordError(err)
		slog.Error("follow toggle failed", "follower", follower.Email, "followee", event.FolloweeEmail, "error", err)
		h.reply(msg, FollowToggleReply{Error: err.Error()})
		return
	}

	slog.Info("follow toggled", "follower", follower.Email, "followee", event.FolloweeEmail, "outcome", outcome)
	h.reply(msg, FollowToggleReply{Outcome: string(outcome)})
}

type FollowListEvent struct {
	Token     string `json:"token"`
	Of        string `json:"of,omitempty"`        // vide = le profil du caller
	Direction string `json:"direction,omitempty"` // "followers" (défaut) ou "followees"
}

type FollowListReply struct {
	Profiles []*domain.ProfileSummary `json:"profiles,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

func (h *EventHandler) HandleFollowList(msg *nats.Msg) {
	ctx, span, cancel := start(msg, "process_follow_list")
	defer span.End()
	defer cancel()

	var event FollowListEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("invalid list event format", "error", err)
		return
	}

	viewer, err := h.gate.Authorize(ctx, event.Token, time.Now())
	if err != nil {
		span.RecordError(err)
		h.reply(msg, FollowListReply{Error: "unauthenticated"})
		return
	}

	q := ports.ListQuery{Of: event.Of, Viewer: viewer.Email}
	if q.Of == "" {
		// Comme l'app mobile : sans paramètre, on liste son propre profil.
		q.Of = viewer.Email
	}

	var profiles []*domain.ProfileSummary
	if event.Direction == "followees" {
		profiles, err = h.follows.ListFollowees(ctx, q)
	} else {
		profiles, err = h.follows.ListFollowers(ctx, q)
	}
	if err != nil {
		span.RecordError(err)
		h.reply(msg, FollowListReply{Error: err.Error()})
		return
	}

	h.reply(msg, FollowListReply{Profiles: profiles})
}

// reply répond sur le sujet de réponse s'il y en a un (fire-and-forget sinon).
func (h *EventHandler) reply(msg *nats.Msg, payload any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error("failed to respond", "subject", msg.Subject, "error", err)
	}
}
