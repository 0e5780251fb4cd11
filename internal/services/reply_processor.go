package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
	"github.com/CyberwizD/smart-agro-advisor/pkg/metrics"
)

const (
	defaultCity       = "Unknown"
	mediaFilename     = "leaf.jpg"
	defaultMinMediaSz = 1024
)

// AdviceService produces an advisory for an uploaded image.
type AdviceService interface {
	Advise(ctx context.Context, req AdviceRequest) (*models.Advisory, error)
}

// ReplyProcessor handles one inbound message end to end: acknowledgment,
// media download, advisory and reply delivery. Every failure before delivery
// is reported to the sender as a short notice.
type ReplyProcessor struct {
	deliverer     Deliverer
	media         MediaFetcher
	advisor       AdviceService
	statusUpdater *StatusUpdater
	metrics       *metrics.Metrics
	logger        *slog.Logger
	minMediaBytes int
}

func NewReplyProcessor(
	deliverer Deliverer,
	media MediaFetcher,
	advisor AdviceService,
	statusUpdater *StatusUpdater,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	minMediaBytes int,
) *ReplyProcessor {
	if minMediaBytes <= 0 {
		minMediaBytes = defaultMinMediaSz
	}
	return &ReplyProcessor{
		deliverer:     deliverer,
		media:         media,
		advisor:       advisor,
		statusUpdater: statusUpdater,
		metrics:       metrics,
		logger:        logger,
		minMediaBytes: minMediaBytes,
	}
}

// Notify sends the user-facing notice for err. It is used by dispatchers when
// processing ends abnormally.
func (p *ReplyProcessor) Notify(ctx context.Context, to string, err error) {
	p.send(ctx, to, UserNotice(err))
}

func (p *ReplyProcessor) Process(ctx context.Context, msg models.InboundMessage) error {
	p.metrics.IncProcessed()
	logger := p.logger.With(slog.String("request_id", msg.RequestID), slog.String("from", msg.From))
	p.statusUpdater.MarkProcessing(ctx, msg.RequestID, msg.From)

	p.send(ctx, msg.From, AckMessage)

	if !msg.HasMedia() {
		logger.Info("message without media, sending hint")
		p.send(ctx, msg.From, NoMediaHint)
		p.statusUpdater.MarkDelivered(ctx, msg.RequestID, msg.From)
		return nil
	}

	city := strings.TrimSpace(msg.Body)
	if city == "" {
		city = defaultCity
	}

	image, err := p.media.Download(ctx, msg.MediaURL)
	if err != nil {
		return p.abort(ctx, msg, newError(KindDownloadFailure, "media download failed", err))
	}
	if len(image) < p.minMediaBytes {
		return p.abort(ctx, msg, newError(KindEmptyOrCorruptMedia,
			fmt.Sprintf("media is %d bytes, minimum %d", len(image), p.minMediaBytes), nil))
	}
	logger.Info("media downloaded", slog.Int("bytes", len(image)), slog.String("city", city))

	advisory, err := p.advisor.Advise(ctx, AdviceRequest{Image: image, Filename: mediaFilename, City: city})
	if err != nil {
		return p.abort(ctx, msg, err)
	}

	if advisory.WeatherError != "" {
		p.metrics.IncWeatherFailure()
		p.send(ctx, msg.From, userNotices[KindWeatherUnavailable])
	}

	err = p.deliverer.Deliver(ctx, msg.From, RenderReply(advisory))
	if err == nil {
		p.metrics.IncDelivered()
		p.statusUpdater.MarkDelivered(ctx, msg.RequestID, msg.From)
		logger.Info("advisory delivered", slog.String("crop", advisory.Crop), slog.String("disease", advisory.Diagnosis.Label))
		return nil
	}

	logger.Warn("advisory delivery failed, sending summary", slog.Any("error", err))
	if summaryErr := p.deliverer.Deliver(ctx, msg.From, RenderSummary(advisory)); summaryErr != nil {
		failure := newError(KindDeliveryFailure, "reply and summary delivery failed", summaryErr)
		logger.Error("summary delivery failed", slog.Any("error", failure))
		p.metrics.IncFailed()
		p.statusUpdater.MarkFailed(ctx, msg.RequestID, msg.From, failure.Error())
		return failure
	}

	p.metrics.IncFallback()
	p.statusUpdater.MarkFallback(ctx, msg.RequestID, msg.From, err.Error())
	return nil
}

// abort reports err to the sender and records the request as failed.
func (p *ReplyProcessor) abort(ctx context.Context, msg models.InboundMessage, err error) error {
	p.logger.Warn("advisory processing stopped",
		slog.String("request_id", msg.RequestID),
		slog.String("kind", string(KindOf(err))),
		slog.Any("error", err),
	)
	p.Notify(ctx, msg.From, err)
	p.metrics.IncFailed()
	p.statusUpdater.MarkFailed(ctx, msg.RequestID, msg.From, err.Error())
	return err
}

func (p *ReplyProcessor) send(ctx context.Context, to, text string) {
	if err := p.deliverer.Deliver(ctx, to, text); err != nil {
		p.logger.Error("failed to send message", slog.String("to", to), slog.Any("error", err))
	}
}
