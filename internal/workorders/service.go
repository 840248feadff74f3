package workorders

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const defaultLockTimeout = 5 * time.Second

type Deps struct {
	Materials Materials
	Orders    Orders
	Ledger    Ledger
	Locker    MaterialLocker
	Alerter   Alerter
	Metrics   *Metrics
	Log       *slog.Logger
	// LockTimeout bounds the wait for a material lock.
	LockTimeout time.Duration
}

// Service is the work-order engine: it keeps the reservation ledger, the
// stock levels and the order budget/status consistent with each other.
type Service struct {
	materials   Materials
	orders      Orders
	ledger      Ledger
	locker      MaterialLocker
	alerter     Alerter
	metrics     *Metrics
	log         *slog.Logger
	lockTimeout time.Duration
}

func New(d Deps) *Service {
	s := &Service{
		materials:   d.Materials,
		orders:      d.Orders,
		ledger:      d.Ledger,
		locker:      d.Locker,
		alerter:     d.Alerter,
		metrics:     d.Metrics,
		log:         d.Log,
		lockTimeout: d.LockTimeout,
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.alerter == nil {
		s.alerter = nopAlerter{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = defaultLockTimeout
	}
	return s
}

func (s *Service) lockMaterial(ctx context.Context, materialID int64) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return s.locker.LockMaterial(lctx, materialID)
}
