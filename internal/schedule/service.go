package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"burrito-backend/internal/audit"
	"burrito-backend/internal/clock"
	"burrito-backend/internal/config"
	"burrito-backend/internal/lock"
	"burrito-backend/internal/metrics"
	"burrito-backend/internal/models"
	"burrito-backend/internal/store"
	"burrito-backend/internal/validation"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	moduleName = "schedule"

	generateLockKey = "burrito:schedules:generate"
	generateLockTTL = time.Minute
)

var (
	ErrCapacityExhausted = errors.New("sold out, please choose another day")
	ErrOrderingClosed    = errors.New("ordering is closed for this production day")
	ErrScheduleHasOrders = errors.New("production schedule still has orders")
)

var tracer = otel.Tracer("burrito-backend/internal/schedule")

type Service struct {
	store    store.Store
	clock    clock.Clock
	locker   lock.Locker
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	defaults config.ScheduleDefaults
}

func NewService(st store.Store, clk clock.Clock, locker lock.Locker, logger logrus.FieldLogger, m *metrics.Metrics, defaults config.ScheduleDefaults) *Service {
	return &Service{
		store:    st,
		clock:    clk,
		locker:   locker,
		logger:   logger,
		metrics:  m,
		defaults: defaults,
	}
}

func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) today() time.Time {
	return models.DateOnly(s.clock.Now())
}

func positiveQuantity(quantity int) error {
	if quantity <= 0 {
		return validation.New("quantity", "Quantity must be a positive number")
	}
	return nil
}

// ReserveInTx locks the schedule row in tx and reserves quantity units. It
// fails with ErrCapacityExhausted, leaving the row untouched, when the units
// do not fit.
func (s *Service) ReserveInTx(ctx context.Context, tx store.Store, scheduleID uint, quantity int) (*models.ProductionSchedule, error) {
	ctx, span := tracer.Start(ctx, "schedule.Reserve")
	defer span.End()
	span.SetAttributes(attribute.Int64("schedule.id", int64(scheduleID)), attribute.Int("quantity", quantity))

	if err := positiveQuantity(quantity); err != nil {
		return nil, err
	}
	sched, err := tx.LockSchedule(ctx, scheduleID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !sched.Reserve(quantity) {
		s.metrics.ObserveReservation("exhausted")
		span.SetStatus(codes.Error, "capacity exhausted")
		return nil, fmt.Errorf("%w: %d requested, %d available on %s",
			ErrCapacityExhausted, quantity, sched.AvailableCapacity(), sched.DateString())
	}
	if err := tx.SaveSchedule(ctx, sched); err != nil {
		s.metrics.ObserveReservation("error")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveReservation("ok")
	return sched, nil
}

// ReleaseInTx locks the schedule row in tx and returns quantity units,
// flooring the counter at zero.
func (s *Service) ReleaseInTx(ctx context.Context, tx store.Store, scheduleID uint, quantity int) (*models.ProductionSchedule, error) {
	ctx, span := tracer.Start(ctx, "schedule.Release")
	defer span.End()
	span.SetAttributes(attribute.Int64("schedule.id", int64(scheduleID)), attribute.Int("quantity", quantity))

	if err := positiveQuantity(quantity); err != nil {
		return nil, err
	}
	sched, err := tx.LockSchedule(ctx, scheduleID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	before := sched.BurritosOrdered
	sched.Release(quantity)
	if err := tx.SaveSchedule(ctx, sched); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveRelease(before - sched.BurritosOrdered)
	return sched, nil
}

func (s *Service) Reserve(ctx context.Context, scheduleID uint, quantity int) (*models.ProductionSchedule, error) {
	var out *models.ProductionSchedule
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		sched, err := s.ReserveInTx(ctx, tx, scheduleID, quantity)
		out = sched
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Release(ctx context.Context, scheduleID uint, quantity int) (*models.ProductionSchedule, error) {
	var out *models.ProductionSchedule
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		sched, err := s.ReleaseInTx(ctx, tx, scheduleID, quantity)
		out = sched
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type CreateInput struct {
	ProductionDate  string `json:"production_date"`
	MaxBurritos     *int   `json:"max_burritos"`
	OrderCutoffTime string `json:"order_cutoff_time"`
	PickupStartTime string `json:"pickup_start_time"`
	PickupEndTime   string `json:"pickup_end_time"`
	IsActive        *bool  `json:"is_active"`
	Notes           string `json:"notes"`
}

// UpdateInput changes only the fields that are set. The production date is
// fixed once a schedule exists.
type UpdateInput struct {
	MaxBurritos     *int    `json:"max_burritos"`
	OrderCutoffTime *string `json:"order_cutoff_time"`
	PickupStartTime *string `json:"pickup_start_time"`
	PickupEndTime   *string `json:"pickup_end_time"`
	IsActive        *bool   `json:"is_active"`
	Notes           *string `json:"notes"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *Service) newSchedule(date time.Time) *models.ProductionSchedule {
	sched := models.NewProductionSchedule(date, s.defaults.Capacity)
	sched.OrderCutoffTime = orDefault(s.defaults.OrderCutoffTime, models.DefaultOrderCutoffTime)
	sched.PickupStartTime = orDefault(s.defaults.PickupStartTime, models.DefaultPickupStartTime)
	sched.PickupEndTime = orDefault(s.defaults.PickupEndTime, models.DefaultPickupEndTime)
	if sched.MaxBurritos == 0 {
		sched.MaxBurritos = models.DefaultBurritoCapacity
	}
	return sched
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.ProductionSchedule, error) {
	date, err := models.ParseDate(in.ProductionDate)
	if err != nil {
		return nil, validation.New("production_date", "Production date must be formatted YYYY-MM-DD")
	}
	sched := s.newSchedule(date)
	if in.MaxBurritos != nil {
		sched.MaxBurritos = *in.MaxBurritos
	}
	sched.OrderCutoffTime = orDefault(in.OrderCutoffTime, sched.OrderCutoffTime)
	sched.PickupStartTime = orDefault(in.PickupStartTime, sched.PickupStartTime)
	sched.PickupEndTime = orDefault(in.PickupEndTime, sched.PickupEndTime)
	if in.IsActive != nil {
		sched.IsActive = *in.IsActive
	}
	sched.Notes = in.Notes

	if err := sched.Validate(); err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateSchedule(ctx, sched); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			EntityType:  models.AuditEntitySchedule,
			EntityID:    sched.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Production day %s created with %d burritos", sched.DateString(), sched.MaxBurritos),
			After:       sched,
		})
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// Update applies admin edits under the row lock so they never interleave
// with reservations.
func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*models.ProductionSchedule, error) {
	var out *models.ProductionSchedule
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		sched, err := tx.LockSchedule(ctx, id)
		if err != nil {
			return err
		}
		before := *sched

		if in.MaxBurritos != nil {
			sched.MaxBurritos = *in.MaxBurritos
		}
		if in.OrderCutoffTime != nil {
			sched.OrderCutoffTime = *in.OrderCutoffTime
		}
		if in.PickupStartTime != nil {
			sched.PickupStartTime = *in.PickupStartTime
		}
		if in.PickupEndTime != nil {
			sched.PickupEndTime = *in.PickupEndTime
		}
		if in.IsActive != nil {
			sched.IsActive = *in.IsActive
		}
		if in.Notes != nil {
			sched.Notes = *in.Notes
		}

		if sched.MaxBurritos < sched.BurritosOrdered {
			return validation.New("max_burritos",
				fmt.Sprintf("Maximum burritos cannot be lower than the %d already reserved", sched.BurritosOrdered))
		}
		if err := sched.Validate(); err != nil {
			return err
		}
		if err := tx.SaveSchedule(ctx, sched); err != nil {
			return err
		}
		out = sched
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			EntityType:  models.AuditEntitySchedule,
			EntityID:    sched.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Production day %s updated", sched.DateString()),
			Before:      before,
			After:       sched,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.Transaction(ctx, func(tx store.Store) error {
		sched, err := tx.LockSchedule(ctx, id)
		if err != nil {
			return err
		}
		n, err := tx.CountScheduleOrders(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d orders reference %s", ErrScheduleHasOrders, n, sched.DateString())
		}
		if err := tx.DeleteSchedule(ctx, id); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			EntityType:  models.AuditEntitySchedule,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Production day %s deleted", sched.DateString()),
			Before:      sched,
		})
	})
}

func (s *Service) Get(ctx context.Context, id uint) (*models.ProductionSchedule, error) {
	return s.store.FindSchedule(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.ScheduleFilter) ([]models.ProductionSchedule, error) {
	return s.store.ListSchedules(ctx, f)
}

// ListUpcoming returns every schedule from today on, active or not.
func (s *Service) ListUpcoming(ctx context.Context) ([]models.ProductionSchedule, error) {
	today := s.today()
	return s.store.ListSchedules(ctx, store.ScheduleFilter{From: &today})
}

// ListAvailable returns the schedules a customer can order from right now.
func (s *Service) ListAvailable(ctx context.Context) ([]models.ProductionSchedule, error) {
	now := s.clock.Now()
	today := models.DateOnly(now)
	all, err := s.store.ListSchedules(ctx, store.ScheduleFilter{From: &today, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]models.ProductionSchedule, 0, len(all))
	for _, sched := range all {
		if sched.CanAcceptNewOrders(now) {
			out = append(out, sched)
		}
	}
	return out, nil
}

type GenerateResult struct {
	Created []models.ProductionSchedule `json:"created"`
	Skipped []string                    `json:"skipped"`
}

// Generate creates Saturday and Sunday schedules for the next weeks weeks,
// starting today, with the configured defaults. Dates that already have a
// schedule are skipped. Concurrent generators are serialized by a named lock.
func (s *Service) Generate(ctx context.Context, weeks int) (*GenerateResult, error) {
	if weeks <= 0 {
		weeks = s.defaults.WeeksAhead
	}
	if weeks <= 0 {
		return nil, validation.New("weeks", "Weeks must be a positive number")
	}

	lk, err := s.locker.Obtain(ctx, generateLockKey, generateLockTTL)
	if err != nil {
		config.LogError(s.logger, moduleName, "Generate", "obtain generation lock", nil, err)
		return nil, err
	}
	defer func() {
		if rerr := lk.Release(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.WithError(rerr).Warn("release generation lock")
		}
	}()

	res := &GenerateResult{Created: []models.ProductionSchedule{}, Skipped: []string{}}
	start := s.today()
	end := start.AddDate(0, 0, 7*weeks)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if !models.IsValidProductionDate(d) {
			continue
		}
		if _, err := s.store.FindScheduleByDate(ctx, d); err == nil {
			res.Skipped = append(res.Skipped, d.Format(models.DateLayout))
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return res, err
		}

		sched := s.newSchedule(d)
		err := s.store.Transaction(ctx, func(tx store.Store) error {
			if err := tx.CreateSchedule(ctx, sched); err != nil {
				return err
			}
			return audit.WriteLog(ctx, tx, audit.LogOptions{
				EntityType:  models.AuditEntitySchedule,
				EntityID:    sched.ID,
				Action:      models.AuditActionGenerate,
				Description: fmt.Sprintf("Production day %s generated with %d burritos", sched.DateString(), sched.MaxBurritos),
				After:       sched,
			})
		})
		if errors.Is(err, store.ErrDuplicate) {
			res.Skipped = append(res.Skipped, d.Format(models.DateLayout))
			continue
		}
		if err != nil {
			return res, err
		}
		res.Created = append(res.Created, *sched)
	}

	s.logger.WithFields(logrus.Fields{
		"weeks":   weeks,
		"created": len(res.Created),
		"skipped": len(res.Skipped),
	}).Info("production schedules generated")
	return res, nil
}
