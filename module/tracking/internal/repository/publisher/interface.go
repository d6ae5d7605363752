package publisher

import (
	"context"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *domain.Alert) error
}
