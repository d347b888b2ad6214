// Package whatsapp turns inbound WhatsApp messages into recording commands
// and sends replies and report summaries back.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/service/recording"
	client "github.com/mamadbah2/broiler/pkg/clients/whatsapp"
)

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// CommandHandler executes a parsed worker command and returns the reply.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg      config.WhatsAppConfig
	client   client.Client
	commands CommandHandler
	logger   *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, commands CommandHandler, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:      cfg,
		client:   client,
		commands: commands,
		logger:   logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

var usage = map[models.CommandType]string{
	models.CommandLog:     "Daily log: /log <dead> <feed kg> [water l] [weight g] [feed source], e.g. /log 3 120 300 850 starter.",
	models.CommandHealth:  "Health: /health <vaccine|medicine> <name> [cost], e.g. /health vaccine gumboro 150.",
	models.CommandSale:    "Sale: /sale <amount> [description], e.g. /sale 12000 market.",
	models.CommandExpense: "Expense: /expense <amount> [description], e.g. /expense 300 litter.",
	models.CommandReport:  "Report: /report",
}

const helpText = "Supported commands: /log, /health, /sale, /expense, /report."

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text := extractMessageText(msg)
	if text == "" {
		s.logger.Debug("ignoring message without text", zap.String("type", msg.Type), zap.String("message_id", msg.ID))
		return nil
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.Strings("args", cmd.Args))

	reply, err := s.commands.HandleCommand(ctx, cmd, msg.From)
	if err != nil {
		reply = replyForError(cmd, err)
		s.logger.Warn("command rejected", zap.String("command", string(cmd.Type)), zap.Error(err))
	}

	return s.SendOutbound(ctx, models.OutboundMessageRequest{To: msg.From, Message: reply})
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	delivery, err := s.client.SendText(ctxWithTimeout, client.TextMessage{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	if err != nil {
		return err
	}
	if delivery.Parts() > 1 {
		s.logger.Debug("message sent in parts", zap.String("to", req.To), zap.Int("parts", delivery.Parts()))
	}
	return nil
}

func replyForError(cmd models.Command, err error) string {
	switch {
	case errors.Is(err, recording.ErrUnsupportedCommand):
		return helpText
	case errors.Is(err, recording.ErrInvalidArguments):
		return "Could not read that command. " + usage[cmd.Type]
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code != apperror.CodeInternal {
		return "Not recorded: " + appErr.Message
	}
	return "Not recorded: something went wrong, please try again later."
}

func extractMessageText(msg models.InboundMessage) string {
	if msg.Text != nil {
		return msg.Text.Body
	}

	if msg.Interactive != nil && msg.Interactive.ButtonReply != nil {
		return msg.Interactive.ButtonReply.ID
	}

	return ""
}
