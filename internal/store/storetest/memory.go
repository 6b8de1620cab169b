// Package storetest provides an in-memory store.Store for service and HTTP
// tests. Transactions are fully serialized, which is at least as strong as
// the row locks the Postgres store takes, and roll back by snapshot.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"burrito-backend/internal/models"
	"burrito-backend/internal/store"
)

type state struct {
	schedules map[uint]models.ProductionSchedule
	orders    map[uint]models.Order
	users     map[uint]models.User
	audits    []models.AuditLog
	nextID    uint
}

func (s *state) clone() state {
	out := state{
		schedules: make(map[uint]models.ProductionSchedule, len(s.schedules)),
		orders:    make(map[uint]models.Order, len(s.orders)),
		users:     make(map[uint]models.User, len(s.users)),
		audits:    append([]models.AuditLog(nil), s.audits...),
		nextID:    s.nextID,
	}
	for k, v := range s.schedules {
		out.schedules[k] = v
	}
	for k, v := range s.orders {
		out.orders[k] = copyOrder(v)
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	return out
}

func (s *state) id() uint {
	s.nextID++
	return s.nextID
}

type db struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	st       state
	now      func() time.Time
	failures map[string]error
}

// Memory implements store.Store.
type Memory struct {
	db   *db
	inTx bool
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{db: &db{
		st: state{
			schedules: map[uint]models.ProductionSchedule{},
			orders:    map[uint]models.Order{},
			users:     map[uint]models.User{},
		},
		now:      time.Now,
		failures: map[string]error{},
	}}
}

// SetNow overrides the timestamp source for created_at/updated_at.
func (m *Memory) SetNow(fn func() time.Time) {
	m.db.mu.Lock()
	m.db.now = fn
	m.db.mu.Unlock()
}

// FailOn makes every call to the named method return err. A nil err clears it.
func (m *Memory) FailOn(method string, err error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err == nil {
		delete(m.db.failures, method)
		return
	}
	m.db.failures[method] = err
}

func (m *Memory) do(method string, fn func(st *state, now time.Time) error) error {
	if !m.inTx {
		m.db.txMu.Lock()
		defer m.db.txMu.Unlock()
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.db.failures[method]; err != nil {
		return err
	}
	return fn(&m.db.st, m.db.now())
}

func (m *Memory) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	if !m.inTx {
		m.db.txMu.Lock()
		defer m.db.txMu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.db.mu.Lock()
	snap := m.db.st.clone()
	m.db.mu.Unlock()

	if err := fn(&Memory{db: m.db, inTx: true}); err != nil {
		m.db.mu.Lock()
		m.db.st = snap
		m.db.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) CreateSchedule(ctx context.Context, s *models.ProductionSchedule) error {
	return m.do("CreateSchedule", func(st *state, now time.Time) error {
		if err := s.Validate(); err != nil {
			return err
		}
		for _, existing := range st.schedules {
			if existing.ProductionDate.Equal(models.DateOnly(s.ProductionDate)) {
				return fmt.Errorf("production_date %s: %w", s.DateString(), store.ErrDuplicate)
			}
		}
		s.ID = st.id()
		s.ProductionDate = models.DateOnly(s.ProductionDate)
		s.CreatedAt, s.UpdatedAt = now, now
		st.schedules[s.ID] = *s
		return nil
	})
}

func (m *Memory) SaveSchedule(ctx context.Context, s *models.ProductionSchedule) error {
	return m.do("SaveSchedule", func(st *state, now time.Time) error {
		if _, ok := st.schedules[s.ID]; !ok {
			return store.ErrNotFound
		}
		if err := s.Validate(); err != nil {
			return err
		}
		for id, existing := range st.schedules {
			if id != s.ID && existing.ProductionDate.Equal(models.DateOnly(s.ProductionDate)) {
				return fmt.Errorf("production_date %s: %w", s.DateString(), store.ErrDuplicate)
			}
		}
		s.UpdatedAt = now
		st.schedules[s.ID] = *s
		return nil
	})
}

func (m *Memory) findSchedule(method string, id uint) (*models.ProductionSchedule, error) {
	var out models.ProductionSchedule
	err := m.do(method, func(st *state, _ time.Time) error {
		s, ok := st.schedules[id]
		if !ok {
			return store.ErrNotFound
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) FindSchedule(ctx context.Context, id uint) (*models.ProductionSchedule, error) {
	return m.findSchedule("FindSchedule", id)
}

func (m *Memory) LockSchedule(ctx context.Context, id uint) (*models.ProductionSchedule, error) {
	if !m.inTx {
		return nil, fmt.Errorf("storetest: LockSchedule outside a transaction")
	}
	return m.findSchedule("LockSchedule", id)
}

func (m *Memory) FindScheduleByDate(ctx context.Context, date time.Time) (*models.ProductionSchedule, error) {
	var out models.ProductionSchedule
	err := m.do("FindScheduleByDate", func(st *state, _ time.Time) error {
		for _, s := range st.schedules {
			if s.ProductionDate.Equal(models.DateOnly(date)) {
				out = s
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) ListSchedules(ctx context.Context, f store.ScheduleFilter) ([]models.ProductionSchedule, error) {
	var out []models.ProductionSchedule
	err := m.do("ListSchedules", func(st *state, _ time.Time) error {
		for _, s := range st.schedules {
			if f.From != nil && s.ProductionDate.Before(models.DateOnly(*f.From)) {
				continue
			}
			if f.To != nil && s.ProductionDate.After(models.DateOnly(*f.To)) {
				continue
			}
			if f.ActiveOnly && !s.IsActive {
				continue
			}
			out = append(out, s)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductionDate.Before(out[j].ProductionDate)
	})
	return out, err
}

func (m *Memory) DeleteSchedule(ctx context.Context, id uint) error {
	return m.do("DeleteSchedule", func(st *state, _ time.Time) error {
		if _, ok := st.schedules[id]; !ok {
			return store.ErrNotFound
		}
		for _, o := range st.orders {
			if o.ProductionScheduleID == id {
				return fmt.Errorf("storetest: schedule %d is referenced by order %d", id, o.ID)
			}
		}
		delete(st.schedules, id)
		return nil
	})
}

func (m *Memory) CountScheduleOrders(ctx context.Context, scheduleID uint) (int64, error) {
	var n int64
	err := m.do("CountScheduleOrders", func(st *state, _ time.Time) error {
		for _, o := range st.orders {
			if o.ProductionScheduleID == scheduleID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *Memory) CreateOrder(ctx context.Context, o *models.Order) error {
	return m.do("CreateOrder", func(st *state, now time.Time) error {
		if _, ok := st.schedules[o.ProductionScheduleID]; !ok {
			return fmt.Errorf("storetest: schedule %d does not exist", o.ProductionScheduleID)
		}
		for _, existing := range st.orders {
			if existing.OrderNumber == o.OrderNumber {
				return fmt.Errorf("order_number %s: %w", o.OrderNumber, store.ErrDuplicate)
			}
		}
		o.ID = st.id()
		o.CreatedAt, o.UpdatedAt = now, now
		for i := range o.Burritos {
			o.Burritos[i].ID = st.id()
			o.Burritos[i].OrderID = o.ID
			o.Burritos[i].CreatedAt, o.Burritos[i].UpdatedAt = now, now
		}
		st.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

// SaveOrder writes the order's own columns; burrito lines are immutable after
// creation. The write is rejected when the stored status is no longer expected.
func (m *Memory) SaveOrder(ctx context.Context, o *models.Order, expected models.OrderStatus) error {
	return m.do("SaveOrder", func(st *state, now time.Time) error {
		existing, ok := st.orders[o.ID]
		if !ok {
			return store.ErrNotFound
		}
		if existing.Status != expected {
			return fmt.Errorf("order %d is %s, expected %s: %w", o.ID, existing.Status, expected, store.ErrConflict)
		}
		o.UpdatedAt = now
		saved := copyOrder(*o)
		saved.Burritos = existing.Burritos
		st.orders[o.ID] = saved
		return nil
	})
}

func (m *Memory) findOrder(method string, match func(models.Order) bool) (*models.Order, error) {
	var out models.Order
	err := m.do(method, func(st *state, _ time.Time) error {
		for _, o := range st.orders {
			if match(o) {
				out = st.preload(o)
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) FindOrder(ctx context.Context, id uint) (*models.Order, error) {
	return m.findOrder("FindOrder", func(o models.Order) bool { return o.ID == id })
}

func (m *Memory) LockOrder(ctx context.Context, id uint) (*models.Order, error) {
	if !m.inTx {
		return nil, fmt.Errorf("storetest: LockOrder outside a transaction")
	}
	return m.findOrder("LockOrder", func(o models.Order) bool { return o.ID == id })
}

func (m *Memory) FindOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return m.findOrder("FindOrderByNumber", func(o models.Order) bool { return o.OrderNumber == number })
}

func (m *Memory) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	err := m.do("ListOrders", func(st *state, _ time.Time) error {
		for _, o := range st.orders {
			if f.ScheduleID != nil && o.ProductionScheduleID != *f.ScheduleID {
				continue
			}
			if f.Status != nil && o.Status != *f.Status {
				continue
			}
			if f.UserID != nil && (o.UserID == nil || *o.UserID != *f.UserID) {
				continue
			}
			if f.Phone != "" && o.CustomerPhone != f.Phone {
				continue
			}
			out = append(out, st.preload(o))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	return m.do("CreateUser", func(st *state, now time.Time) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return fmt.Errorf("email %s: %w", u.Email, store.ErrDuplicate)
			}
		}
		u.ID = st.id()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = *u
		return nil
	})
}

func (m *Memory) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var out models.User
	err := m.do("FindUser", func(st *state, _ time.Time) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var out models.User
	err := m.do("FindUserByEmail", func(st *state, _ time.Time) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				out = u
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) CreateAuditLog(ctx context.Context, l *models.AuditLog) error {
	return m.do("CreateAuditLog", func(st *state, now time.Time) error {
		l.ID = st.id()
		l.CreatedAt = now
		st.audits = append(st.audits, *l)
		return nil
	})
}

func (m *Memory) ListAuditLogs(ctx context.Context, f store.AuditFilter) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := m.do("ListAuditLogs", func(st *state, _ time.Time) error {
		for i := len(st.audits) - 1; i >= 0; i-- {
			l := st.audits[i]
			if f.EntityType != "" && l.EntityType != f.EntityType {
				continue
			}
			if f.EntityID != nil && l.EntityID != *f.EntityID {
				continue
			}
			out = append(out, l)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (st *state) preload(o models.Order) models.Order {
	out := copyOrder(o)
	if o.UserID != nil {
		if u, ok := st.users[*o.UserID]; ok {
			out.User = &u
		}
	}
	if s, ok := st.schedules[o.ProductionScheduleID]; ok {
		out.ProductionSchedule = &s
	}
	return out
}

func copyOrder(o models.Order) models.Order {
	out := o
	out.User = nil
	out.ProductionSchedule = nil
	out.Burritos = append([]models.Burrito(nil), o.Burritos...)
	if o.UserID != nil {
		id := *o.UserID
		out.UserID = &id
	}
	for _, p := range []**time.Time{&out.ConfirmedAt, &out.PreparedAt, &out.ReadyAt, &out.CompletedAt, &out.CancelledAt} {
		if *p != nil {
			t := **p
			*p = &t
		}
	}
	return out
}
