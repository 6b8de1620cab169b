package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"burrito-backend/internal/validation"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm"
)

type DayOfWeek string

const (
	DaySaturday DayOfWeek = "saturday"
	DaySunday   DayOfWeek = "sunday"
)

const (
	MinBurritoCapacity     = 1
	MaxBurritoCapacity     = 500
	DefaultBurritoCapacity = 100
	DefaultOrderCutoffTime = "22:00:00"
	DefaultPickupStartTime = "09:00:00"
	DefaultPickupEndTime   = "13:00:00"

	DateLayout = "2006-01-02"

	// NearCapacityPercent marks a day as nearly sold out in stats.
	NearCapacityPercent = 70.0
)

// ProductionSchedule is the capacity ledger for one weekend production day.
// BurritosOrdered is an eagerly maintained reservation counter; it is only
// mutated through Reserve/Release under a row lock, or by admin edits.
type ProductionSchedule struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ProductionDate  time.Time `gorm:"type:date;uniqueIndex;not null" json:"production_date" validate:"weekend"`
	DayOfWeek       DayOfWeek `gorm:"size:10;not null" json:"day_of_week"`
	MaxBurritos     int       `gorm:"not null;check:chk_production_schedules_max_burritos,max_burritos BETWEEN 1 AND 500" json:"max_burritos" validate:"min=1,max=500"`
	BurritosOrdered int       `gorm:"not null;default:0" json:"burritos_ordered" validate:"min=0,ltefield=MaxBurritos"`
	OrderCutoffTime string    `gorm:"size:8;not null" json:"order_cutoff_time" validate:"timeofday"`
	PickupStartTime string    `gorm:"size:8;not null" json:"pickup_start_time" validate:"timeofday"`
	PickupEndTime   string    `gorm:"size:8;not null" json:"pickup_end_time" validate:"timeofday"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	Notes           string    `gorm:"size:500" json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var scheduleMessages = map[string]string{
	"ProductionDate":  "Production can only be scheduled for weekends",
	"MaxBurritos":     "Maximum burritos must be between 1 and 500",
	"BurritosOrdered": "Burritos ordered must be between 0 and the maximum capacity",
	"OrderCutoffTime": "Order cutoff time must be formatted HH:MM:SS",
	"PickupStartTime": "Pickup start time must be formatted HH:MM:SS",
	"PickupEndTime":   "Pickup end time must be formatted HH:MM:SS",
}

// IsValidProductionDate reports whether date falls on a Saturday or Sunday.
func IsValidProductionDate(date time.Time) bool {
	_, ok := DayOfWeekFor(date)
	return ok
}

func DayOfWeekFor(date time.Time) (DayOfWeek, bool) {
	switch date.Weekday() {
	case time.Saturday:
		return DaySaturday, true
	case time.Sunday:
		return DaySunday, true
	}
	return "", false
}

// DateOnly strips the clock and zone from t, keeping its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// NewProductionSchedule builds an active schedule with default times for date.
func NewProductionSchedule(date time.Time, capacity int) *ProductionSchedule {
	date = DateOnly(date)
	day, _ := DayOfWeekFor(date)
	return &ProductionSchedule{
		ProductionDate:  date,
		DayOfWeek:       day,
		MaxBurritos:     capacity,
		OrderCutoffTime: DefaultOrderCutoffTime,
		PickupStartTime: DefaultPickupStartTime,
		PickupEndTime:   DefaultPickupEndTime,
		IsActive:        true,
	}
}

// Validate checks every schedule invariant. It runs on create and update.
func (s *ProductionSchedule) Validate() error {
	verr := &validation.Error{}
	verr.Merge(validation.Struct(s, scheduleMessages))

	if day, ok := DayOfWeekFor(s.ProductionDate); ok && day != s.DayOfWeek {
		verr.Add("day_of_week", "Day of week does not match the production date")
	}
	return verr.Err()
}

// BeforeSave keeps invalid rows out of the database whatever the write path.
func (s *ProductionSchedule) BeforeSave(tx *gorm.DB) error {
	return s.Validate()
}

func (s *ProductionSchedule) DateString() string {
	return s.ProductionDate.Format(DateLayout)
}

// AvailableCapacity is max(0, max_burritos - burritos_ordered).
func (s *ProductionSchedule) AvailableCapacity() int {
	if s.BurritosOrdered >= s.MaxBurritos {
		return 0
	}
	return s.MaxBurritos - s.BurritosOrdered
}

// CanAcceptOrder is a pure capacity check; time and active status are ignored.
func (s *ProductionSchedule) CanAcceptOrder(quantity int) bool {
	return s.AvailableCapacity() >= quantity
}

// Reserve increments the counter when quantity fits. The caller must hold the
// row lock and persist the schedule.
func (s *ProductionSchedule) Reserve(quantity int) bool {
	if !s.CanAcceptOrder(quantity) {
		return false
	}
	s.BurritosOrdered += quantity
	return true
}

// Release decrements the counter, flooring at zero.
func (s *ProductionSchedule) Release(quantity int) {
	s.BurritosOrdered -= quantity
	if s.BurritosOrdered < 0 {
		s.BurritosOrdered = 0
	}
}

func clockOn(date time.Time, hhmmss string, loc *time.Location) time.Time {
	tod, err := time.Parse(validation.TimeOfDayLayout, hhmmss)
	if err != nil {
		tod = time.Time{}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc)
}

// CutoffAt is the instant ordering closes: production date at the cutoff time in loc.
func (s *ProductionSchedule) CutoffAt(loc *time.Location) time.Time {
	return clockOn(s.ProductionDate, s.OrderCutoffTime, loc)
}

func (s *ProductionSchedule) PickupWindow(loc *time.Location) (start, end time.Time) {
	return clockOn(s.ProductionDate, s.PickupStartTime, loc), clockOn(s.ProductionDate, s.PickupEndTime, loc)
}

// IsWithinOrderingWindow is true strictly before the cutoff instant. The
// cutoff is interpreted in now's location.
func (s *ProductionSchedule) IsWithinOrderingWindow(now time.Time) bool {
	return now.Before(s.CutoffAt(now.Location()))
}

// CanAcceptNewOrders is the gate callers check before taking a new order.
func (s *ProductionSchedule) CanAcceptNewOrders(now time.Time) bool {
	return s.IsActive && s.IsWithinOrderingWindow(now) && s.AvailableCapacity() > 0
}

type CutoffStatus struct {
	AcceptingOrders bool    `json:"accepting_orders"`
	CutoffTime      string  `json:"cutoff_time"`
	TimeUntilCutoff *string `json:"time_until_cutoff"`
	Reason          *string `json:"reason"`
}

func (s *ProductionSchedule) CutoffStatus(now time.Time) CutoffStatus {
	cutoff := s.CutoffAt(now.Location())
	st := CutoffStatus{
		AcceptingOrders: s.IsWithinOrderingWindow(now),
		CutoffTime:      cutoff.Format(time.RFC3339),
	}
	if st.AcceptingOrders {
		until := humanize.RelTime(cutoff, now, "ago", "from now")
		st.TimeUntilCutoff = &until
		if !s.IsActive {
			reason := "Production day is not active"
			st.Reason = &reason
		}
		return st
	}
	reason := fmt.Sprintf("Ordering closed at %s on %s", cutoff.Format("3:04 PM"), cutoff.Format("Monday, January 2"))
	st.Reason = &reason
	return st
}

type ProductionStats struct {
	TotalCapacity      int     `json:"total_capacity"`
	ReservedCapacity   int     `json:"reserved_capacity"`
	RemainingCapacity  int     `json:"remaining_capacity"`
	CapacityPercentage float64 `json:"capacity_percentage"`
	IsNearCapacity     bool    `json:"is_near_capacity"`
	IsSoldOut          bool    `json:"is_sold_out"`
}

// CapacityPercentage is reserved/total as a percentage with one decimal.
// It is for display; thresholds compare the exact ratio.
func (s *ProductionSchedule) CapacityPercentage() float64 {
	return math.Round(s.capacityPercent()*10) / 10
}

func (s *ProductionSchedule) capacityPercent() float64 {
	if s.MaxBurritos <= 0 {
		return 0
	}
	return float64(s.BurritosOrdered) / float64(s.MaxBurritos) * 100
}

func (s *ProductionSchedule) ProductionStats() ProductionStats {
	return ProductionStats{
		TotalCapacity:      s.MaxBurritos,
		ReservedCapacity:   s.BurritosOrdered,
		RemainingCapacity:  s.AvailableCapacity(),
		CapacityPercentage: s.CapacityPercentage(),
		IsNearCapacity:     s.capacityPercent() >= NearCapacityPercent,
		IsSoldOut:          s.BurritosOrdered >= s.MaxBurritos,
	}
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

type CapacityDisplay struct {
	Status     string  `json:"status"` // "available" or "sold_out"
	Urgency    Urgency `json:"urgency"`
	Message    string  `json:"message"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

func (s *ProductionSchedule) MobileCapacityDisplay() CapacityDisplay {
	remaining := s.AvailableCapacity()
	pct := s.CapacityPercentage()
	exact := s.capacityPercent()
	if remaining == 0 {
		return CapacityDisplay{
			Status:     "sold_out",
			Urgency:    UrgencyCritical,
			Message:    "Sold Out",
			Remaining:  0,
			Percentage: pct,
		}
	}

	var urgency Urgency
	switch {
	case exact >= 95:
		urgency = UrgencyCritical
	case exact >= 80:
		urgency = UrgencyHigh
	case exact >= 50:
		urgency = UrgencyMedium
	default:
		urgency = UrgencyLow
	}

	msg := fmt.Sprintf("%d available", remaining)
	if remaining <= 5 {
		msg = fmt.Sprintf("Only %d left!", remaining)
	}
	return CapacityDisplay{
		Status:     "available",
		Urgency:    urgency,
		Message:    msg,
		Remaining:  remaining,
		Percentage: pct,
	}
}
