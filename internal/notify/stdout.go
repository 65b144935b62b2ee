package notify

import (
	"context"
	"log/slog"

	"github.com/jakopako/signin/internal/log"
)

// StdoutNotifier writes notifications as log lines. It is also the
// fallback when another notifier fails.
type StdoutNotifier struct{}

func NewStdoutNotifier(nc *NotifierConfig) *StdoutNotifier {
	return &StdoutNotifier{}
}

func (w *StdoutNotifier) Notify(ctx context.Context, n Notification) error {
	log.LoggerFromContext(ctx).Info("notification",
		slog.String("notifier", string(STDOUT_NOTIFIER_TYPE)),
		slog.String("title", n.Title),
		slog.String("text", n.Text),
		slog.Bool("success", n.Success))
	return nil
}
