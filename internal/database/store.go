package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"burrito-backend/internal/models"
	"burrito-backend/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements store.Store on gorm.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func (s *Store) CreateSchedule(ctx context.Context, sched *models.ProductionSchedule) error {
	sched.ProductionDate = models.DateOnly(sched.ProductionDate)
	return translate(s.conn(ctx).Create(sched).Error)
}

func (s *Store) SaveSchedule(ctx context.Context, sched *models.ProductionSchedule) error {
	res := s.conn(ctx).Model(sched).Select("*").Omit("created_at").Updates(sched)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindSchedule(ctx context.Context, id uint) (*models.ProductionSchedule, error) {
	var sched models.ProductionSchedule
	if err := s.conn(ctx).First(&sched, id).Error; err != nil {
		return nil, translate(err)
	}
	return &sched, nil
}

// LockSchedule reads the schedule with SELECT ... FOR UPDATE. Callers must be
// inside Transaction.
func (s *Store) LockSchedule(ctx context.Context, id uint) (*models.ProductionSchedule, error) {
	var sched models.ProductionSchedule
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sched, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sched, nil
}

func (s *Store) FindScheduleByDate(ctx context.Context, date time.Time) (*models.ProductionSchedule, error) {
	var sched models.ProductionSchedule
	err := s.conn(ctx).
		Where("production_date = ?", models.DateOnly(date).Format(models.DateLayout)).
		First(&sched).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sched, nil
}

func (s *Store) ListSchedules(ctx context.Context, f store.ScheduleFilter) ([]models.ProductionSchedule, error) {
	q := s.conn(ctx).Model(&models.ProductionSchedule{})
	if f.From != nil {
		q = q.Where("production_date >= ?", models.DateOnly(*f.From).Format(models.DateLayout))
	}
	if f.To != nil {
		q = q.Where("production_date <= ?", models.DateOnly(*f.To).Format(models.DateLayout))
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []models.ProductionSchedule
	if err := q.Order("production_date ASC").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&models.ProductionSchedule{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountScheduleOrders(ctx context.Context, scheduleID uint) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Order{}).
		Where("production_schedule_id = ?", scheduleID).
		Count(&n).Error
	return n, translate(err)
}

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	return translate(s.conn(ctx).Omit("User", "ProductionSchedule").Create(o).Error)
}

// SaveOrder writes the order's own columns while the row still has the
// expected status. Burrito lines are immutable after creation and associations
// are never upserted from here.
func (s *Store) SaveOrder(ctx context.Context, o *models.Order, expected models.OrderStatus) error {
	res := s.conn(ctx).Model(o).
		Where("status = ?", expected).
		Omit(clause.Associations, "created_at").
		Select("*").
		Updates(o)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := s.conn(ctx).Model(&models.Order{}).Where("id = ?", o.ID).Count(&n).Error; err != nil {
		return translate(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return fmt.Errorf("order %d is no longer %s: %w", o.ID, expected, store.ErrConflict)
}

func (s *Store) preloadOrder(ctx context.Context) *gorm.DB {
	return s.conn(ctx).
		Preload("Burritos", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("User").
		Preload("ProductionSchedule")
}

func (s *Store) FindOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := s.preloadOrder(ctx).First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// LockOrder takes the order row with SELECT ... FOR UPDATE, then loads it with
// its associations. Callers must be inside Transaction.
func (s *Store) LockOrder(ctx context.Context, id uint) (*models.Order, error) {
	var locked models.Order
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&locked, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.FindOrder(ctx, id)
}

func (s *Store) FindOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var o models.Order
	if err := s.preloadOrder(ctx).Where("order_number = ?", number).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	q := s.preloadOrder(ctx).Model(&models.Order{})
	if f.ScheduleID != nil {
		q = q.Where("production_schedule_id = ?", *f.ScheduleID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Phone != "" {
		q = q.Where("customer_phone = ?", f.Phone)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.Order
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.conn(ctx).Create(u).Error)
}

func (s *Store) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, l *models.AuditLog) error {
	return translate(s.conn(ctx).Create(l).Error)
}

func (s *Store) ListAuditLogs(ctx context.Context, f store.AuditFilter) ([]models.AuditLog, error) {
	q := s.conn(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		q = q.Where("entity_id = ?", *f.EntityID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}
