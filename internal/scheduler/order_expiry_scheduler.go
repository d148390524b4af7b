package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tmoreland/maplecart-backend/internal/app/service"
	"github.com/tmoreland/maplecart-backend/pkg/logger"
)

// OrderExpiryScheduler cancels pending orders whose payment never arrived.
type OrderExpiryScheduler struct {
	cron         *cron.Cron
	orderService service.OrderService
	maxAge       time.Duration
}

func NewOrderExpiryScheduler(orderService service.OrderService, maxAge time.Duration) *OrderExpiryScheduler {
	return &OrderExpiryScheduler{
		cron:         cron.New(),
		orderService: orderService,
		maxAge:       maxAge,
	}
}

// Start schedules the expiry sweep to run hourly.
func (s *OrderExpiryScheduler) Start() error {
	_, err := s.cron.AddFunc("@hourly", func() {
		logger.Info("Starting stale order sweep", map[string]interface{}{
			"max_age": s.maxAge.String(),
		})

		cancelled, err := s.orderService.ExpireStalePendingOrders(s.maxAge)
		if err != nil {
			logger.Error("Stale order sweep failed", err)
			return
		}

		logger.Info("Stale order sweep completed", map[string]interface{}{
			"cancelled": cancelled,
		})
	})
	if err != nil {
		logger.Error("Failed to register stale order sweep", err)
		return err
	}

	s.cron.Start()
	logger.Info("Order expiry scheduler started (hourly)", nil)

	return nil
}

// Stop halts the scheduler.
func (s *OrderExpiryScheduler) Stop() {
	s.cron.Stop()
	logger.Info("Order expiry scheduler stopped", nil)
}
