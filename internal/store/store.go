// Package store declares the persistence contract the services depend on.
// internal/database implements it on gorm/Postgres; storetest keeps it in
// memory for tests.
package store

import (
	"context"
	"errors"
	"time"

	"burrito-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means the row changed after it was read.
	ErrConflict = errors.New("record was modified concurrently")
)

type ScheduleFilter struct {
	From       *time.Time
	To         *time.Time
	ActiveOnly bool
}

type OrderFilter struct {
	ScheduleID *uint
	Status     *models.OrderStatus
	UserID     *uint
	Phone      string
	Limit      int
}

type AuditFilter struct {
	EntityType string
	EntityID   *uint
	Limit      int
}

// Store is the persistence boundary. Transaction runs fn against a Store bound
// to one database transaction; returning an error from fn rolls back every
// write fn made. LockSchedule and LockOrder must be called inside a
// transaction and hold the row until it ends.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateSchedule(ctx context.Context, s *models.ProductionSchedule) error
	SaveSchedule(ctx context.Context, s *models.ProductionSchedule) error
	FindSchedule(ctx context.Context, id uint) (*models.ProductionSchedule, error)
	LockSchedule(ctx context.Context, id uint) (*models.ProductionSchedule, error)
	FindScheduleByDate(ctx context.Context, date time.Time) (*models.ProductionSchedule, error)
	ListSchedules(ctx context.Context, f ScheduleFilter) ([]models.ProductionSchedule, error)
	DeleteSchedule(ctx context.Context, id uint) error
	CountScheduleOrders(ctx context.Context, scheduleID uint) (int64, error)

	CreateOrder(ctx context.Context, o *models.Order) error
	// SaveOrder writes o only while the stored status still equals expected;
	// otherwise it returns ErrConflict and writes nothing.
	SaveOrder(ctx context.Context, o *models.Order, expected models.OrderStatus) error
	FindOrder(ctx context.Context, id uint) (*models.Order, error)
	LockOrder(ctx context.Context, id uint) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)

	CreateUser(ctx context.Context, u *models.User) error
	FindUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateAuditLog(ctx context.Context, l *models.AuditLog) error
	ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)
}
