package handler_test

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// ハンドラテスト用のインメモリ実装（DB・Redisなし）

type memStore struct {
	mu          sync.Mutex
	cartMu      sync.Mutex // Update全体を直列化する
	carts       map[int64]*model.Cart
	products    map[int64]model.Product
	addresses   []model.Address
	orders      []model.Order
	adjustments []model.InventoryAdjustment
	audits      []model.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		carts:    map[int64]*model.Cart{},
		products: map[int64]model.Product{},
	}
}

// carts

type memCarts struct{ s *memStore }

func (r memCarts) Load(ctx context.Context, userID int64) (*model.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return model.NewCart(userID), nil
	}
	cp := *c
	cp.Lines = c.Snapshot()
	return &cp, nil
}

func (r memCarts) Save(ctx context.Context, cart *model.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *cart
	cp.Lines = cart.Snapshot()
	r.s.carts[cart.UserID] = &cp
	return nil
}

func (r memCarts) Delete(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, userID)
	return nil
}

func (r memCarts) Update(ctx context.Context, userID int64, fn func(cart *model.Cart) error) (*model.Cart, error) {
	r.s.cartMu.Lock()
	defer r.s.cartMu.Unlock()

	cart, err := r.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return cart, r.Delete(ctx, userID)
	}
	return cart, r.Save(ctx, cart)
}

// products / inventory

type memProducts struct{ s *memStore }

func (r memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

type memInventory struct{ s *memStore }

func (r memInventory) DecrementStock(ctx context.Context, productID int64, qty int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	moved := qty
	if p.Stock < moved {
		moved = p.Stock
	}
	p.Stock -= moved
	r.s.products[productID] = p
	return moved, nil
}

func (r memInventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.adjustments = append(r.s.adjustments, adj)
	return nil
}

// addresses

type memAddresses struct{ s *memStore }

func (r memAddresses) CreateForUser(ctx context.Context, a model.Address) (model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.IsDefault = true
	for _, other := range r.s.addresses {
		if other.UserID == a.UserID {
			a.IsDefault = false
			break
		}
	}
	a.ID = int64(len(r.s.addresses) + 1)
	r.s.addresses = append(r.s.addresses, a)
	return a, nil
}

func (r memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Address
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAddresses) FindByID(ctx context.Context, id int64) (model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.addresses {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Address{}, repo.ErrNotFound
}

func (r memAddresses) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	list, _ := r.ListByUserID(ctx, userID)
	return int64(len(list)), nil
}

// orders / items / audit

type memOrders struct{ s *memStore }

func (r memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = int64(len(r.s.orders) + 1)
	r.s.orders = append(r.s.orders, o)
	return o.ID, nil
}

func (r memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (r memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

type memOrderItems struct{ s *memStore }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.ID == orderID {
			return o.Items, nil
		}
	}
	return nil, nil
}

type memAudits struct{ s *memStore }

func (r memAudits) Create(ctx context.Context, l model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, l)
	return nil
}

func (r memAudits) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.AuditLog
	for _, l := range r.s.audits {
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

type memTx struct{ s *memStore }

func (m memTx) Orders() repo.OrderRepository         { return memOrders{m.s} }
func (m memTx) OrderItems() repo.OrderItemRepository { return memOrderItems{m.s} }
func (m memTx) Inventory() repo.InventoryRepository  { return memInventory{m.s} }
func (m memTx) AuditLogs() repo.AuditLogRepository   { return memAudits{m.s} }

func (m memTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(m)
}

// JWTのsubをそのままログイン済みセッションにする
type stubSessions struct{}

func (stubSessions) Session(ctx context.Context, userID int64, tv int) (model.Session, error) {
	return model.Session{
		Authenticated: true,
		User:          model.SessionUser{ID: userID, Name: "Asha", Email: "asha@example.com"},
	}, nil
}

func (s *memStore) stock(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderSnapshot() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Order(nil), s.orders...)
}

func (s *memStore) setStock(id int64, stock int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Stock = stock
	s.products[id] = p
}
