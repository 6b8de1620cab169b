package models

import (
	"errors"
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusConfirmed     OrderStatus = "confirmed"
	OrderStatusInPreparation OrderStatus = "in_preparation"
	OrderStatusReady         OrderStatus = "ready"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// ErrInvalidTransition is returned when a status change is not an edge of the
// order state machine.
var ErrInvalidTransition = errors.New("invalid order status transition")

// orderTransitions is the single source of truth for the order lifecycle.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:       {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:     {OrderStatusInPreparation, OrderStatusCancelled},
	OrderStatusInPreparation: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:         {OrderStatusCompleted},
	OrderStatusCompleted:     {},
	OrderStatusCancelled:     {},
}

func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusInPreparation,
		OrderStatusReady,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s OrderStatus) AllowedTransitions() []OrderStatus {
	next := orderTransitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// HoldsCapacity reports whether an order in this status owns reserved
// production capacity.
func (s OrderStatus) HoldsCapacity() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusInPreparation, OrderStatusReady, OrderStatusCompleted:
		return true
	}
	return false
}

type StatusDisplay struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

var statusDisplays = map[OrderStatus]StatusDisplay{
	OrderStatusPending:       {Label: "Order Received", Description: "We received your order and will confirm it shortly.", Color: "yellow", Icon: "clock"},
	OrderStatusConfirmed:     {Label: "Confirmed", Description: "Your burritos are locked in for production day.", Color: "blue", Icon: "check-circle"},
	OrderStatusInPreparation: {Label: "In Preparation", Description: "Your burritos are being rolled right now.", Color: "orange", Icon: "fire"},
	OrderStatusReady:         {Label: "Ready for Pickup", Description: "Your order is ready. Come grab it!", Color: "green", Icon: "shopping-bag"},
	OrderStatusCompleted:     {Label: "Completed", Description: "Picked up. Enjoy!", Color: "gray", Icon: "check"},
	OrderStatusCancelled:     {Label: "Cancelled", Description: "This order was cancelled.", Color: "red", Icon: "x-circle"},
}

func (s OrderStatus) Display() StatusDisplay {
	if d, ok := statusDisplays[s]; ok {
		return d
	}
	return StatusDisplay{Label: "Unknown", Description: "Status unavailable.", Color: "gray", Icon: "question"}
}
