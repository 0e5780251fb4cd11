package routes

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
	"github.com/CyberwizD/smart-agro-advisor/internal/services"
)

// Webhook accepts Twilio's inbound WhatsApp callback. It always answers 200
// with a TwiML acknowledgment and leaves the real work to the dispatcher.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer writeTwiML(w, services.WebhookAck)

	if err := r.ParseForm(); err != nil {
		h.Logger.Warn("failed to parse webhook form", slog.Any("error", err))
		return
	}

	msg := models.InboundMessage{
		RequestID:  uuid.NewString(),
		MessageSID: r.PostFormValue("MessageSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		Body:       strings.TrimSpace(r.PostFormValue("Body")),
		MediaURL:   strings.TrimSpace(r.PostFormValue("MediaUrl0")),
		ReceivedAt: time.Now().UTC(),
	}
	h.Metrics.IncInbound()
	logger := h.Logger.With(slog.String("request_id", msg.RequestID), slog.String("message_sid", msg.MessageSID))
	logger.Info("inbound message",
		slog.String("from", msg.From),
		slog.String("body", msg.Body),
		slog.Bool("has_media", msg.HasMedia()),
	)

	if msg.From == "" {
		logger.Warn("inbound message without sender, ignoring")
		return
	}

	if h.Dedup != nil && msg.MessageSID != "" {
		first, err := h.Dedup.FirstSeen(r.Context(), msg.MessageSID, h.DedupTTL)
		if err != nil {
			logger.Warn("dedup check failed, processing anyway", slog.Any("error", err))
		} else if !first {
			h.Metrics.IncDuplicate()
			logger.Info("duplicate webhook delivery skipped")
			return
		}
	}

	if err := h.Dispatcher.Dispatch(r.Context(), msg); err != nil {
		logger.Error("failed to dispatch inbound message", slog.Any("error", err))
	}
}

func writeTwiML(w http.ResponseWriter, message string) {
	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(message))

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header + "<Response><Message>" + escaped.String() + "</Message></Response>"))
}
