package hold

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/logger"
)

// Sweeper periodically expires overdue holds. Several instances may run
// at once (one per service replica); the transition guard in ExpireDue
// keeps them from double-releasing inventory.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *logger.Logger
}

func NewSweeper(service *Service, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{service: service, interval: interval, logger: log}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.LogProcess("hold-sweeper", fmt.Sprintf("Hold expiry sweep started (every %s)", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.LogProcess("hold-sweeper", "Hold expiry sweep stopped")
			return
		case <-ticker.C:
			expired, err := s.service.ExpireDue(ctx, time.Now())
			if err != nil {
				s.logger.Error("SWEEPER", fmt.Sprintf("Sweep failed: %v", err))
				continue
			}
			if expired > 0 {
				s.logger.LogProcess("hold-sweeper", fmt.Sprintf("Expired %d overdue holds", expired))
			}
		}
	}
}
