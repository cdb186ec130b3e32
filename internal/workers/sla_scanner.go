package workers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oselyuk/boardmate/internal/services"
)

// SLAScanner periodically evaluates SLA rules and feeds breaches to the
// notification stream.
type SLAScanner struct {
	SLA      services.SLAService
	Interval time.Duration
	Logger   *logrus.Logger
}

func (s *SLAScanner) Start(ctx context.Context) error {
	if s.SLA == nil {
		return errors.New("SLAScanner missing dependency: SLA must be set")
	}
	if s.Interval <= 0 {
		s.Interval = 15 * time.Minute
	}
	if s.Logger == nil {
		s.Logger = logrus.New()
	}

	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.SLA.Scan(ctx)
				if err != nil {
					s.Logger.WithError(err).Warn("sla scan failed")
					continue
				}
				if n > 0 {
					s.Logger.WithField("enqueued", n).Info("sla scan enqueued notifications")
				}
			}
		}
	}()
	return nil
}
