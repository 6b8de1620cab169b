package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"burrito-backend/internal/audit"
	"burrito-backend/internal/clock"
	"burrito-backend/internal/config"
	"burrito-backend/internal/metrics"
	"burrito-backend/internal/models"
	"burrito-backend/internal/schedule"
	"burrito-backend/internal/store"
	"burrito-backend/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	moduleName = "order"

	maxNumberAttempts = 5
)

var ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")

var tracer = otel.Tracer("burrito-backend/internal/order")

// Ledger is the capacity side of a transition; both calls run inside the
// caller's transaction and hold the schedule row lock until it ends.
type Ledger interface {
	ReserveInTx(ctx context.Context, tx store.Store, scheduleID uint, quantity int) (*models.ProductionSchedule, error)
	ReleaseInTx(ctx context.Context, tx store.Store, scheduleID uint, quantity int) (*models.ProductionSchedule, error)
}

type Pricer interface {
	Price(line BurritoInput) (decimal.Decimal, error)
}

// FlatPricer charges the same base price for every burrito.
type FlatPricer struct {
	Base decimal.Decimal
}

func (p FlatPricer) Price(BurritoInput) (decimal.Decimal, error) {
	return p.Base, nil
}

type Service struct {
	store   store.Store
	ledger  Ledger
	clock   clock.Clock
	pricer  Pricer
	numbers NumberGenerator
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewService(st store.Store, ledger Ledger, clk clock.Clock, pricer Pricer, logger logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		ledger:  ledger,
		clock:   clk,
		pricer:  pricer,
		numbers: GenerateOrderNumber,
		logger:  logger,
		metrics: m,
	}
}

type BurritoInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Notes string `json:"notes" validate:"max=255"`
}

type CreateInput struct {
	ProductionScheduleID uint           `json:"production_schedule_id" validate:"required"`
	CustomerName         string         `json:"customer_name" validate:"max=100"`
	CustomerPhone        string         `json:"customer_phone"`
	CustomerEmail        string         `json:"customer_email" validate:"omitempty,email,max=255"`
	SpecialInstructions  string         `json:"special_instructions" validate:"max=500"`
	Burritos             []BurritoInput `json:"burritos" validate:"required,min=1,max=50,dive"`
}

var createMessages = map[string]string{
	"ProductionScheduleID": "Please choose a production day",
	"CustomerName":         "Customer name must be at most 100 characters",
	"CustomerEmail":        "Please enter a valid email address",
	"SpecialInstructions":  "Special instructions must be at most 500 characters",
	"Burritos":             "An order needs between 1 and 50 burritos",
	"Name":                 "Every burrito needs a name of at most 100 characters",
	"Notes":                "Burrito notes must be at most 255 characters",
}

// contact holds the validated, normalized owner data for a new order.
type contact struct {
	owner models.Owner
	name  string
	phone string
}

func validateContact(name, phone string, verr *validation.Error) string {
	if strings.TrimSpace(name) == "" {
		verr.Add("customer_name", "Customer name is required")
	}
	if strings.TrimSpace(phone) == "" {
		verr.Add("customer_phone", "Customer phone is required")
		return ""
	}
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		verr.Merge(err)
		return ""
	}
	return normalized
}

// CreateGuestOrder places a PENDING order owned by guest contact details.
func (s *Service) CreateGuestOrder(ctx context.Context, in CreateInput) (*models.Order, error) {
	verr := &validation.Error{}
	verr.Merge(validation.Struct(in, createMessages))
	phone := validateContact(in.CustomerName, in.CustomerPhone, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	c := contact{
		owner: models.GuestOwner{
			Name:  strings.TrimSpace(in.CustomerName),
			Email: strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		},
		name:  strings.TrimSpace(in.CustomerName),
		phone: phone,
	}
	return s.create(ctx, c, in)
}

// CreateOrder places a PENDING order owned by an account. The name comes from
// the account; the phone comes from the request or falls back to the account.
func (s *Service) CreateOrder(ctx context.Context, userID uint, in CreateInput) (*models.Order, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rawPhone := in.CustomerPhone
	if strings.TrimSpace(rawPhone) == "" {
		rawPhone = user.Phone
	}

	verr := &validation.Error{}
	verr.Merge(validation.Struct(in, createMessages))
	phone := validateContact(user.Name, rawPhone, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	c := contact{
		owner: models.AuthenticatedOwner{UserID: user.ID},
		name:  user.Name,
		phone: phone,
	}
	return s.create(ctx, c, in)
}

func (s *Service) create(ctx context.Context, c contact, in CreateInput) (*models.Order, error) {
	sched, err := s.store.FindSchedule(ctx, in.ProductionScheduleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, validation.New("production_schedule_id", "The selected production day does not exist")
	}
	if err != nil {
		return nil, err
	}
	if !models.IsValidProductionDate(sched.ProductionDate) {
		return nil, validation.New("production_schedule_id", "Orders can only be placed for weekend production days")
	}

	now := s.clock.Now()
	if !sched.CanAcceptNewOrders(now) {
		reason := "no capacity left"
		if st := sched.CutoffStatus(now); st.Reason != nil {
			reason = *st.Reason
		}
		return nil, fmt.Errorf("%w: %s", schedule.ErrOrderingClosed, reason)
	}
	if !sched.CanAcceptOrder(len(in.Burritos)) {
		return nil, fmt.Errorf("%w: %d requested, %d available on %s",
			schedule.ErrCapacityExhausted, len(in.Burritos), sched.AvailableCapacity(), sched.DateString())
	}

	o := &models.Order{
		Status:               models.OrderStatusPending,
		CustomerPhone:        c.phone,
		ProductionScheduleID: sched.ID,
		SpecialInstructions:  strings.TrimSpace(in.SpecialInstructions),
	}
	o.SetOwner(c.owner)
	for _, line := range in.Burritos {
		price, err := s.pricer.Price(line)
		if err != nil {
			return nil, err
		}
		o.Burritos = append(o.Burritos, models.Burrito{
			Name:  strings.TrimSpace(line.Name),
			Notes: strings.TrimSpace(line.Notes),
			Price: price,
		})
	}
	o.Subtotal = o.SubtotalFromBurritos()
	o.CalculateTotals()

	kind := "guest"
	if !o.IsGuestOrder() {
		kind = "authenticated"
	}

	for attempt := 1; ; attempt++ {
		number, err := s.numbers(now)
		if err != nil {
			return nil, err
		}
		o.OrderNumber = number

		err = s.store.Transaction(ctx, func(tx store.Store) error {
			if err := tx.CreateOrder(ctx, o); err != nil {
				return err
			}
			return audit.WriteLog(ctx, tx, audit.LogOptions{
				EntityType:  models.AuditEntityOrder,
				EntityID:    o.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Order %s placed by %s for %s", o.OrderNumber, c.name, sched.DateString()),
				After:       o,
			})
		})
		if err == nil {
			break
		}
		resetIDs(o)
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"module":       moduleName,
			"order_number": number,
			"attempt":      attempt,
		}).Warn("order number collision")
		if attempt == maxNumberAttempts {
			return nil, fmt.Errorf("%w after %d attempts", ErrOrderNumberExhausted, attempt)
		}
	}

	s.metrics.ObserveOrderCreated(kind)
	s.logger.WithFields(logrus.Fields{
		"module":       moduleName,
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"schedule_id":  sched.ID,
		"burritos":     o.BurritoCount(),
		"kind":         kind,
	}).Info("order created")
	return o, nil
}

func resetIDs(o *models.Order) {
	o.ID = 0
	for i := range o.Burritos {
		o.Burritos[i].ID = 0
		o.Burritos[i].OrderID = 0
	}
}

// TransitionTo moves an order along the state machine. The order row is locked
// for the whole transaction and the save is conditional on the status it was
// read with, so concurrent transitions of one order apply one at a time. The
// edge check, the capacity side effect, the timestamp and the audit entry
// commit together or not at all.
func (s *Service) TransitionTo(ctx context.Context, id uint, target models.OrderStatus) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.TransitionTo")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", int64(id)), attribute.String("order.target", string(target)))

	var (
		out  *models.Order
		from models.OrderStatus
	)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if !o.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, target)
		}

		qty := o.BurritoCount()
		switch {
		case target == models.OrderStatusConfirmed && qty > 0:
			sched, err := s.ledger.ReserveInTx(ctx, tx, o.ProductionScheduleID, qty)
			if err != nil {
				return err
			}
			o.ProductionSchedule = sched
		case target == models.OrderStatusCancelled && from != models.OrderStatusPending && qty > 0:
			sched, err := s.ledger.ReleaseInTx(ctx, tx, o.ProductionScheduleID, qty)
			if err != nil {
				return err
			}
			o.ProductionSchedule = sched
		}

		if err := o.Advance(target, s.clock.Now()); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, o, from); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("order %s changed while moving to %s: %w", o.OrderNumber, target, err)
			}
			return err
		}
		out = o
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			EntityType:  models.AuditEntityOrder,
			EntityID:    o.ID,
			Action:      models.AuditActionTransition,
			Description: fmt.Sprintf("Order %s moved from %s to %s", o.OrderNumber, from, target),
			Before:      map[string]any{"status": from, "burritos": qty},
			After:       map[string]any{"status": target, "burritos": qty},
		})
	})

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, models.ErrInvalidTransition):
		result = "invalid"
	case errors.Is(err, schedule.ErrCapacityExhausted):
		result = "exhausted"
	case errors.Is(err, store.ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	if from != "" {
		s.metrics.ObserveTransition(string(from), string(target), result)
	}

	if err != nil {
		span.SetStatus(codes.Error, result)
		if result == "error" && !errors.Is(err, store.ErrNotFound) {
			config.LogError(s.logger, moduleName, "TransitionTo", "transition order", map[string]any{
				"order_id": id,
				"from":     from,
				"to":       target,
			}, err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module":       moduleName,
		"order_id":     out.ID,
		"order_number": out.OrderNumber,
		"from":         from,
		"to":           target,
	}).Info("order status changed")
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	return s.store.FindOrder(ctx, id)
}

// GetForCustomer returns the order only to its owner: the account it belongs
// to, or anyone presenting its phone number. Anything else reads as not found.
func (s *Service) GetForCustomer(ctx context.Context, number, phone string, userID *uint) (*models.Order, error) {
	o, err := s.store.FindOrderByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, err
	}
	if userID != nil && o.UserID != nil && *o.UserID == *userID {
		return o, nil
	}
	if normalized, err := validation.NormalizePhone(phone); err == nil && normalized == o.CustomerPhone {
		return o, nil
	}
	return nil, store.ErrNotFound
}

// CancelForCustomer cancels on behalf of the order's owner.
func (s *Service) CancelForCustomer(ctx context.Context, number, phone string, userID *uint) (*models.Order, error) {
	o, err := s.GetForCustomer(ctx, number, phone, userID)
	if err != nil {
		return nil, err
	}
	return s.TransitionTo(ctx, o.ID, models.OrderStatusCancelled)
}

func (s *Service) List(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	return s.store.ListOrders(ctx, f)
}

func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	return s.store.ListOrders(ctx, store.OrderFilter{UserID: &userID})
}
