package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notification sender used in dev
type ZapSender struct{}

func (s *ZapSender) SendEmail(ctx context.Context, template, recipient string, payload map[string]any) error {
	zap.S().Named("zap_sender").Infow("email sent", "template", template, "recipient", recipient, "payload", payload)
	return nil
}

func (s *ZapSender) SendPush(ctx context.Context, userID uuid.UUID, payload map[string]any) error {
	zap.S().Named("zap_sender").Infow("push sent", "user_id", userID, "payload", payload)
	return nil
}
