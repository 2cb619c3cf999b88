// Package memory is an in-process repository.Store for running without a
// database. Transactions are serialized; a failed transaction restores the
// snapshot taken when it began.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/repository"
)

var (
	errDuplicatePayment = errors.New("payment already exists for order")
	errDuplicatePage    = errors.New("page number already used in volume")
)

type state struct {
	users    map[int64]models.User
	volumes  map[int64]models.Volume
	pages    map[int64]models.Page
	orders   map[int64]models.Order
	payments map[int64]models.Payment
	nextID   int64
}

func newState() *state {
	return &state{
		users:    map[int64]models.User{},
		volumes:  map[int64]models.Volume{},
		pages:    map[int64]models.Page{},
		orders:   map[int64]models.Order{},
		payments: map[int64]models.Payment{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.volumes {
		c.volumes[k] = v
	}
	for k, v := range s.pages {
		c.pages[k] = clonePage(v)
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type Store struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	st   **state
	inTx bool
}

func NewStore() *Store {
	st := newState()
	return &Store{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, st: &st}
}

// AddUser seeds a user, assigning an id when the user has none.
func (s *Store) AddUser(user models.User) models.User {
	s.lock()
	defer s.unlock()
	st := *s.st
	if user.ID == 0 {
		user.ID = st.id()
	} else if user.ID > st.nextID {
		st.nextID = user.ID
	}
	st.users[user.ID] = user
	return user
}

// AddVolume seeds a volume, assigning an id when the volume has none.
func (s *Store) AddVolume(volume models.Volume) models.Volume {
	s.lock()
	defer s.unlock()
	st := *s.st
	if volume.ID == 0 {
		volume.ID = st.id()
	} else if volume.ID > st.nextID {
		st.nextID = volume.ID
	}
	st.volumes[volume.ID] = volume
	return volume
}

func (s *Store) Users() repository.Users       { return userRepository{s} }
func (s *Store) Volumes() repository.Volumes   { return volumeRepository{s} }
func (s *Store) Pages() repository.Pages       { return pageRepository{s} }
func (s *Store) Orders() repository.Orders     { return orderRepository{s} }
func (s *Store) Payments() repository.Payments { return paymentRepository{s} }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := (*s.st).clone()
	s.mu.Unlock()

	tx := &Store{mu: s.mu, txMu: s.txMu, st: s.st, inTx: true}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		*s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Outside a transaction each call takes txMu so that it observes either the
// state before or after a concurrent transaction, never the middle of one.
func (s *Store) lock() {
	if !s.inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
}

func (s *Store) unlock() {
	s.mu.Unlock()
	if !s.inTx {
		s.txMu.Unlock()
	}
}

func clonePage(p models.Page) models.Page {
	if p.FrameData != nil {
		p.FrameData = append(json.RawMessage(nil), p.FrameData...)
	}
	return p
}

func cloneOrder(o models.Order) models.Order {
	o.Lines = append([]models.OrderLine(nil), o.Lines...)
	return o
}

type userRepository struct{ s *Store }

func (r userRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.lock()
	defer r.s.unlock()
	user, ok := (*r.s.st).users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

type volumeRepository struct{ s *Store }

func (r volumeRepository) GetByID(_ context.Context, id int64) (*models.Volume, error) {
	r.s.lock()
	defer r.s.unlock()
	volume, ok := (*r.s.st).volumes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &volume, nil
}

func (r volumeRepository) GetForUpdate(ctx context.Context, id int64) (*models.Volume, error) {
	return r.GetByID(ctx, id)
}

func (r volumeRepository) UpdatePageCount(_ context.Context, id int64, pageCount int, at time.Time) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	volume, ok := st.volumes[id]
	if !ok {
		return repository.ErrNotFound
	}
	volume.PageCount = pageCount
	volume.UpdatedAt = at
	st.volumes[id] = volume
	return nil
}

type pageRepository struct{ s *Store }

func (r pageRepository) ListByVolume(_ context.Context, volumeID int64) ([]models.Page, error) {
	r.s.lock()
	defer r.s.unlock()
	pages := []models.Page{}
	for _, p := range (*r.s.st).pages {
		if p.VolumeID == volumeID {
			pages = append(pages, clonePage(p))
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}

func (r pageRepository) GetByID(_ context.Context, id int64) (*models.Page, error) {
	r.s.lock()
	defer r.s.unlock()
	page, ok := (*r.s.st).pages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	page = clonePage(page)
	return &page, nil
}

func (r pageRepository) GetByNumber(_ context.Context, volumeID int64, pageNumber int) (*models.Page, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, p := range (*r.s.st).pages {
		if p.VolumeID == volumeID && p.PageNumber == pageNumber {
			p = clonePage(p)
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r pageRepository) CountByVolume(_ context.Context, volumeID int64) (int, error) {
	r.s.lock()
	defer r.s.unlock()
	count := 0
	for _, p := range (*r.s.st).pages {
		if p.VolumeID == volumeID {
			count++
		}
	}
	return count, nil
}

func (r pageRepository) Create(_ context.Context, page *models.Page) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	if _, ok := st.volumes[page.VolumeID]; !ok {
		return repository.ErrNotFound
	}
	for _, p := range st.pages {
		if p.VolumeID == page.VolumeID && p.PageNumber == page.PageNumber {
			return errDuplicatePage
		}
	}
	page.ID = st.id()
	st.pages[page.ID] = clonePage(*page)
	return nil
}

func (r pageRepository) Update(_ context.Context, page *models.Page) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	if _, ok := st.pages[page.ID]; !ok {
		return repository.ErrNotFound
	}
	st.pages[page.ID] = clonePage(*page)
	return nil
}

func (r pageRepository) Delete(_ context.Context, id int64) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	if _, ok := st.pages[id]; !ok {
		return repository.ErrNotFound
	}
	delete(st.pages, id)
	return nil
}

func (r pageRepository) DeleteByVolume(_ context.Context, volumeID int64) (int64, error) {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	var removed int64
	for id, p := range st.pages {
		if p.VolumeID == volumeID {
			delete(st.pages, id)
			removed++
		}
	}
	return removed, nil
}

type orderRepository struct{ s *Store }

func (r orderRepository) Create(_ context.Context, order *models.Order) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	order.ID = st.id()
	for i := range order.Lines {
		order.Lines[i].ID = st.id()
		order.Lines[i].OrderID = order.ID
	}
	st.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r orderRepository) GetByID(_ context.Context, id int64) (*models.Order, error) {
	r.s.lock()
	defer r.s.unlock()
	order, ok := (*r.s.st).orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	order = cloneOrder(order)
	return &order, nil
}

func (r orderRepository) GetForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r orderRepository) ListByUser(_ context.Context, userID int64) ([]models.Order, error) {
	r.s.lock()
	defer r.s.unlock()
	orders := []models.Order{}
	for _, o := range (*r.s.st).orders {
		if o.UserID == userID {
			orders = append(orders, cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r orderRepository) UpdateStatus(_ context.Context, order *models.Order) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	stored, ok := st.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = order.Status
	stored.PaidAt = order.PaidAt
	stored.CancelledAt = order.CancelledAt
	stored.UpdatedAt = order.UpdatedAt
	st.orders[order.ID] = stored
	return nil
}

type paymentRepository struct{ s *Store }

func (r paymentRepository) Create(_ context.Context, payment *models.Payment) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	for _, p := range st.payments {
		if p.OrderID == payment.OrderID {
			return errDuplicatePayment
		}
	}
	payment.ID = st.id()
	st.payments[payment.ID] = *payment
	return nil
}

func (r paymentRepository) GetByID(_ context.Context, id int64) (*models.Payment, error) {
	r.s.lock()
	defer r.s.unlock()
	payment, ok := (*r.s.st).payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &payment, nil
}

func (r paymentRepository) GetForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r paymentRepository) GetByOrderID(_ context.Context, orderID int64) (*models.Payment, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, p := range (*r.s.st).payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r paymentRepository) Update(_ context.Context, payment *models.Payment) error {
	r.s.lock()
	defer r.s.unlock()
	st := *r.s.st
	if _, ok := st.payments[payment.ID]; !ok {
		return repository.ErrNotFound
	}
	st.payments[payment.ID] = *payment
	return nil
}
