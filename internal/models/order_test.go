package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableIsExhaustive(t *testing.T) {
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusPending:       {OrderStatusConfirmed: true, OrderStatusCancelled: true},
		OrderStatusConfirmed:     {OrderStatusInPreparation: true, OrderStatusCancelled: true},
		OrderStatusInPreparation: {OrderStatusReady: true, OrderStatusCancelled: true},
		OrderStatusReady:         {OrderStatusCompleted: true},
		OrderStatusCompleted:     {},
		OrderStatusCancelled:     {},
	}
	for _, from := range AllOrderStatuses() {
		for _, to := range AllOrderStatuses() {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusReady.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmed, st)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)
}

func TestHoldsCapacity(t *testing.T) {
	assert.False(t, OrderStatusPending.HoldsCapacity())
	assert.True(t, OrderStatusConfirmed.HoldsCapacity())
	assert.True(t, OrderStatusInPreparation.HoldsCapacity())
	assert.True(t, OrderStatusReady.HoldsCapacity())
	assert.True(t, OrderStatusCompleted.HoldsCapacity())
	assert.False(t, OrderStatusCancelled.HoldsCapacity())
}

func TestAdvanceStampsOnce(t *testing.T) {
	t0 := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	o := &Order{Status: OrderStatusPending}

	err := o.Advance(OrderStatusReady, t0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Nil(t, o.ReadyAt)

	require.NoError(t, o.Advance(OrderStatusConfirmed, t0))
	require.NotNil(t, o.ConfirmedAt)
	assert.Equal(t, t0, *o.ConfirmedAt)

	require.NoError(t, o.Advance(OrderStatusInPreparation, t0.Add(time.Hour)))
	require.NoError(t, o.Advance(OrderStatusReady, t0.Add(2*time.Hour)))
	require.NoError(t, o.Advance(OrderStatusCompleted, t0.Add(3*time.Hour)))
	assert.Equal(t, t0, *o.ConfirmedAt)
	assert.Equal(t, t0.Add(3*time.Hour), *o.CompletedAt)

	assert.Error(t, o.Advance(OrderStatusCancelled, t0.Add(4*time.Hour)))
	assert.Nil(t, o.CancelledAt)
}

func TestOwnerVariants(t *testing.T) {
	o := &Order{}
	o.SetOwner(GuestOwner{Name: "Rosa", Email: "rosa@example.com"})
	assert.True(t, o.IsGuestOrder())
	assert.Equal(t, GuestOwner{Name: "Rosa", Email: "rosa@example.com"}, o.Owner())
	assert.Equal(t, "Rosa", o.DisplayName())

	o.SetOwner(AuthenticatedOwner{UserID: 7})
	assert.False(t, o.IsGuestOrder())
	assert.Equal(t, AuthenticatedOwner{UserID: 7}, o.Owner())
	assert.Empty(t, o.CustomerName)

	o.User = &User{ID: 7, Name: "Miguel"}
	assert.Equal(t, "Miguel", o.DisplayName())
}

func TestCalculateTotals(t *testing.T) {
	o := &Order{Subtotal: decimal.RequireFromString("10.00")}
	o.CalculateTotals()
	assert.Equal(t, "0.88", o.TaxAmount.StringFixed(2))
	assert.Equal(t, "10.88", o.TotalAmount.StringFixed(2))

	o.Burritos = []Burrito{
		{Price: decimal.RequireFromString("12.00")},
		{Price: decimal.RequireFromString("13.50")},
	}
	o.Subtotal = o.SubtotalFromBurritos()
	o.CalculateTotals()
	assert.Equal(t, "25.50", o.Subtotal.StringFixed(2))
	assert.Equal(t, "2.23", o.TaxAmount.StringFixed(2)) // 223.125 cents
	assert.Equal(t, "27.73", o.TotalAmount.StringFixed(2))
}

func TestEstimatedReadyTime(t *testing.T) {
	t0 := time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC)

	o := &Order{Status: OrderStatusPending}
	assert.Nil(t, o.EstimatedReadyTime())

	require.NoError(t, o.Advance(OrderStatusConfirmed, t0))
	require.NotNil(t, o.EstimatedReadyTime())
	assert.Equal(t, t0.Add(45*time.Minute), *o.EstimatedReadyTime())

	require.NoError(t, o.Advance(OrderStatusInPreparation, t0.Add(time.Hour)))
	assert.Equal(t, t0.Add(80*time.Minute), *o.EstimatedReadyTime())

	require.NoError(t, o.Advance(OrderStatusReady, t0.Add(90*time.Minute)))
	assert.Equal(t, t0.Add(90*time.Minute), *o.EstimatedReadyTime())

	require.NoError(t, o.Advance(OrderStatusCompleted, t0.Add(2*time.Hour)))
	assert.Equal(t, t0.Add(90*time.Minute), *o.EstimatedReadyTime())

	cancelled := &Order{Status: OrderStatusCancelled}
	assert.Nil(t, cancelled.EstimatedReadyTime())
}

func TestStatusHistory(t *testing.T) {
	t0 := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	o := &Order{Status: OrderStatusPending, CreatedAt: t0}
	require.NoError(t, o.Advance(OrderStatusConfirmed, t0.Add(time.Minute)))
	require.NoError(t, o.Advance(OrderStatusCancelled, t0.Add(time.Hour)))

	h := o.StatusHistory()
	require.Len(t, h, 3)
	assert.Equal(t, OrderStatusPending, h[0].Status)
	assert.Equal(t, OrderStatusConfirmed, h[1].Status)
	assert.Equal(t, OrderStatusCancelled, h[2].Status)
	assert.Equal(t, "Cancelled", h[2].Label)
}

func TestStatusDisplayCoversEveryStatus(t *testing.T) {
	for _, st := range AllOrderStatuses() {
		d := st.Display()
		assert.NotEqual(t, "Unknown", d.Label, st)
		assert.NotEmpty(t, d.Color, st)
	}
	assert.Equal(t, "Unknown", OrderStatus("lost").Display().Label)
}
