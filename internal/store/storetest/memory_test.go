package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"burrito-backend/internal/models"
	"burrito-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var saturday = time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := models.NewProductionSchedule(saturday, 10)
	require.NoError(t, m.CreateSchedule(ctx, s))

	boom := errors.New("boom")
	err := m.Transaction(ctx, func(tx store.Store) error {
		locked, err := tx.LockSchedule(ctx, s.ID)
		require.NoError(t, err)
		locked.Reserve(4)
		require.NoError(t, tx.SaveSchedule(ctx, locked))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.FindSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.BurritosOrdered)
}

func TestLockScheduleRequiresTransaction(t *testing.T) {
	m := New()
	_, err := m.LockSchedule(context.Background(), 1)
	assert.Error(t, err)
}

func TestUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := models.NewProductionSchedule(saturday, 10)
	require.NoError(t, m.CreateSchedule(ctx, s))
	assert.ErrorIs(t, m.CreateSchedule(ctx, models.NewProductionSchedule(saturday, 20)), store.ErrDuplicate)

	o := &models.Order{OrderNumber: "HLB-20250607-AAAA", ProductionScheduleID: s.ID, Status: models.OrderStatusPending}
	require.NoError(t, m.CreateOrder(ctx, o))
	dup := &models.Order{OrderNumber: "HLB-20250607-AAAA", ProductionScheduleID: s.ID, Status: models.OrderStatusPending}
	assert.ErrorIs(t, m.CreateOrder(ctx, dup), store.ErrDuplicate)

	require.NoError(t, m.CreateUser(ctx, &models.User{Email: "a@example.com"}))
	assert.ErrorIs(t, m.CreateUser(ctx, &models.User{Email: "A@example.com"}), store.ErrDuplicate)
}

func TestSaveScheduleValidates(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := models.NewProductionSchedule(saturday, 10)
	require.NoError(t, m.CreateSchedule(ctx, s))

	s.BurritosOrdered = 11
	assert.Error(t, m.SaveSchedule(ctx, s))
}

func TestSaveOrderKeepsBurritos(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := models.NewProductionSchedule(saturday, 10)
	require.NoError(t, m.CreateSchedule(ctx, s))

	o := &models.Order{
		OrderNumber:          "HLB-20250607-BBBB",
		ProductionScheduleID: s.ID,
		Status:               models.OrderStatusPending,
		Burritos:             []models.Burrito{{Name: "Carnitas"}, {Name: "Veggie"}},
	}
	require.NoError(t, m.CreateOrder(ctx, o))

	o.Burritos = nil
	o.Status = models.OrderStatusConfirmed
	require.NoError(t, m.SaveOrder(ctx, o, models.OrderStatusPending))

	got, err := m.FindOrderByNumber(ctx, "HLB-20250607-BBBB")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	assert.Len(t, got.Burritos, 2)
	require.NotNil(t, got.ProductionSchedule)
	assert.Equal(t, s.ID, got.ProductionSchedule.ID)
}

func TestSaveOrderRejectsStaleStatus(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := models.NewProductionSchedule(saturday, 10)
	require.NoError(t, m.CreateSchedule(ctx, s))

	o := &models.Order{
		OrderNumber:          "HLB-20250607-CCCC",
		ProductionScheduleID: s.ID,
		Status:               models.OrderStatusPending,
		Burritos:             []models.Burrito{{Name: "Carnitas"}},
	}
	require.NoError(t, m.CreateOrder(ctx, o))

	stale, err := m.FindOrder(ctx, o.ID)
	require.NoError(t, err)

	o.Status = models.OrderStatusCancelled
	require.NoError(t, m.SaveOrder(ctx, o, models.OrderStatusPending))

	stale.Status = models.OrderStatusConfirmed
	assert.ErrorIs(t, m.SaveOrder(ctx, stale, models.OrderStatusPending), store.ErrConflict)

	got, err := m.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)

	missing := &models.Order{ID: 999, Status: models.OrderStatusConfirmed}
	assert.ErrorIs(t, m.SaveOrder(ctx, missing, models.OrderStatusPending), store.ErrNotFound)
}

func TestLockOrderRequiresTransaction(t *testing.T) {
	ctx := context.Background()
	m := New()
	_, err := m.LockOrder(ctx, 1)
	assert.Error(t, err)

	err = m.Transaction(ctx, func(tx store.Store) error {
		_, err := tx.LockOrder(ctx, 1)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFailOn(t *testing.T) {
	ctx := context.Background()
	m := New()
	boom := errors.New("disk full")
	m.FailOn("CreateAuditLog", boom)
	assert.ErrorIs(t, m.CreateAuditLog(ctx, &models.AuditLog{}), boom)
	m.FailOn("CreateAuditLog", nil)
	assert.NoError(t, m.CreateAuditLog(ctx, &models.AuditLog{}))
}
