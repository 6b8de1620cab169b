package models

import (
	"fmt"
	"sort"
	"time"

	"burrito-backend/internal/money"

	"github.com/shopspring/decimal"
)

const (
	confirmedToReady     = 45 * time.Minute
	inPreparationToReady = 20 * time.Minute
)

// Order owns its lifecycle. UserID and the guest contact columns are mutually
// exclusive; use SetOwner/Owner rather than touching them directly.
type Order struct {
	ID                   uint                `gorm:"primaryKey" json:"id"`
	OrderNumber          string              `gorm:"size:20;uniqueIndex;not null" json:"order_number"`
	Status               OrderStatus         `gorm:"size:20;not null;index" json:"status"`
	UserID               *uint               `gorm:"index" json:"user_id"`
	User                 *User               `json:"-"`
	CustomerName         string              `gorm:"size:100" json:"customer_name"`
	CustomerPhone        string              `gorm:"size:20;not null;index" json:"customer_phone"`
	CustomerEmail        string              `gorm:"size:255" json:"customer_email"`
	ProductionScheduleID uint                `gorm:"index;not null" json:"production_schedule_id"`
	ProductionSchedule   *ProductionSchedule `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Subtotal             decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal"`
	TaxAmount            decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0" json:"tax_amount"`
	TotalAmount          decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	SpecialInstructions  string              `gorm:"size:500" json:"special_instructions"`
	ConfirmedAt          *time.Time          `json:"confirmed_at"`
	PreparedAt           *time.Time          `json:"prepared_at"`
	ReadyAt              *time.Time          `json:"ready_at"`
	CompletedAt          *time.Time          `json:"completed_at"`
	CancelledAt          *time.Time          `json:"cancelled_at"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`

	Burritos []Burrito `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"burritos"`
}

func (o *Order) SetOwner(owner Owner) {
	switch v := owner.(type) {
	case AuthenticatedOwner:
		id := v.UserID
		o.UserID = &id
		o.CustomerName = ""
		o.CustomerEmail = ""
	case GuestOwner:
		o.UserID = nil
		o.User = nil
		o.CustomerName = v.Name
		o.CustomerEmail = v.Email
	}
}

func (o *Order) Owner() Owner {
	if o.UserID != nil {
		return AuthenticatedOwner{UserID: *o.UserID}
	}
	return GuestOwner{Name: o.CustomerName, Email: o.CustomerEmail}
}

func (o *Order) IsGuestOrder() bool {
	return o.UserID == nil
}

// DisplayName prefers the linked user's name over the stored guest name.
func (o *Order) DisplayName() string {
	if o.User != nil && o.User.Name != "" {
		return o.User.Name
	}
	return o.CustomerName
}

// BurritoCount is the number of capacity units this order reserves.
func (o *Order) BurritoCount() int {
	return len(o.Burritos)
}

func (o *Order) CanTransitionTo(target OrderStatus) bool {
	return o.Status.CanTransitionTo(target)
}

// Advance moves the order to target and stamps the milestone timestamp.
// Capacity side effects are the caller's job; nothing changes on error.
func (o *Order) Advance(target OrderStatus, at time.Time) error {
	if !o.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	o.Status = target
	stamp := func(field **time.Time) {
		if *field == nil {
			t := at
			*field = &t
		}
	}
	switch target {
	case OrderStatusConfirmed:
		stamp(&o.ConfirmedAt)
	case OrderStatusInPreparation:
		stamp(&o.PreparedAt)
	case OrderStatusReady:
		stamp(&o.ReadyAt)
	case OrderStatusCompleted:
		stamp(&o.CompletedAt)
	case OrderStatusCancelled:
		stamp(&o.CancelledAt)
	}
	return nil
}

// SubtotalFromBurritos sums the line prices.
func (o *Order) SubtotalFromBurritos() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range o.Burritos {
		sum = sum.Add(b.Price)
	}
	return sum
}

// CalculateTotals recomputes tax and total from the current subtotal.
func (o *Order) CalculateTotals() {
	o.Subtotal = money.FromCents(money.ToCents(o.Subtotal))
	o.TaxAmount, o.TotalAmount = money.Totals(o.Subtotal)
}

func (o *Order) StatusDisplay() StatusDisplay {
	return o.Status.Display()
}

// EstimatedReadyTime projects when the order will be ready, or nil when no
// projection applies.
func (o *Order) EstimatedReadyTime() *time.Time {
	var t time.Time
	switch o.Status {
	case OrderStatusConfirmed:
		if o.ConfirmedAt == nil {
			return nil
		}
		t = o.ConfirmedAt.Add(confirmedToReady)
	case OrderStatusInPreparation:
		if o.PreparedAt == nil {
			return nil
		}
		t = o.PreparedAt.Add(inPreparationToReady)
	case OrderStatusReady, OrderStatusCompleted:
		if o.ReadyAt == nil {
			return nil
		}
		t = *o.ReadyAt
	default:
		return nil
	}
	return &t
}

type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Label     string      `json:"label"`
	Timestamp time.Time   `json:"timestamp"`
}

// StatusHistory lists the milestones that have happened, oldest first.
func (o *Order) StatusHistory() []StatusHistoryEntry {
	var out []StatusHistoryEntry
	add := func(st OrderStatus, at *time.Time) {
		if at == nil || at.IsZero() {
			return
		}
		out = append(out, StatusHistoryEntry{Status: st, Label: st.Display().Label, Timestamp: *at})
	}
	created := o.CreatedAt
	add(OrderStatusPending, &created)
	add(OrderStatusConfirmed, o.ConfirmedAt)
	add(OrderStatusInPreparation, o.PreparedAt)
	add(OrderStatusReady, o.ReadyAt)
	add(OrderStatusCompleted, o.CompletedAt)
	add(OrderStatusCancelled, o.CancelledAt)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
