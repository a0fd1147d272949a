package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
)

// CallLog publishes external API exchanges to the API log queue. Publish
// failures are logged and never reach the caller.
type CallLog struct {
	publisher Publisher
	queue     string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewCallLog builds a call log publisher.
func NewCallLog(publisher Publisher, queue string, timeout time.Duration, logger *zap.Logger) *CallLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallLog{publisher: publisher, queue: queue, timeout: timeout, logger: logger}
}

func (c *CallLog) LogCall(ctx context.Context, entry domain.APICallLog) {
	if c == nil || c.publisher == nil || c.queue == "" {
		return
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
	}
	if err := PublishJSON(ctx, c.publisher, c.queue, entry); err != nil {
		c.logger.Warn("api call log publish failed",
			zap.String("path", entry.Path),
			zap.Int("status", entry.StatusCode),
			zap.Error(err),
		)
	}
}
