package usecase_test

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos
// =====================

// txManagerStub は WithinTx の中で固定のreposを渡すだけ
type txManagerStub struct {
	repos repo.TxRepos
}

func (m *txManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(m.repos)
}

type txReposStub struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	inventory  repo.InventoryRepository
	auditLogs  repo.AuditLogRepository
}

func (r *txReposStub) Orders() repo.OrderRepository         { return r.orders }
func (r *txReposStub) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *txReposStub) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *txReposStub) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }

// =====================
// Repository mocks
// =====================

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) Load(ctx context.Context, userID int64) (*model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(*model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) Save(ctx context.Context, cart *model.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *CartRepoMock) Delete(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// Update は Load → fn → Save の順に期待値を消費する
func (m *CartRepoMock) Update(ctx context.Context, userID int64, fn func(cart *model.Cart) error) (*model.Cart, error) {
	cart, err := m.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := m.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) CreateForUser(ctx context.Context, a model.Address) (model.Address, error) {
	args := m.Called(ctx, a)
	out, _ := args.Get(0).(model.Address)
	return out, args.Error(1)
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	out, _ := args.Get(0).([]model.Address)
	return out, args.Error(1)
}

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	out, _ := args.Get(0).(model.Address)
	return out, args.Error(1)
}

func (m *AddressRepoMock) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	out, _ := args.Get(0).([]model.Order)
	return out, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	args := m.Called(ctx, userID, key)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	out, _ := args.Get(0).([]model.OrderItem)
	return out, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) DecrementStock(ctx context.Context, productID int64, qty int64) (int64, error) {
	args := m.Called(ctx, productID, qty)
	return args.Get(0).(int64), args.Error(1)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	args := m.Called(ctx, adj)
	return args.Error(0)
}

type AuditLogRepoMock struct{ mock.Mock }

func (m *AuditLogRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditLogRepoMock) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]model.AuditLog)
	return out, args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

var (
	_ repo.CartRepository      = (*CartRepoMock)(nil)
	_ repo.ProductRepository   = (*ProductRepoMock)(nil)
	_ repo.AddressRepository   = (*AddressRepoMock)(nil)
	_ repo.OrderRepository     = (*OrderRepoMock)(nil)
	_ repo.OrderItemRepository = (*OrderItemRepoMock)(nil)
	_ repo.InventoryRepository = (*InventoryRepoMock)(nil)
	_ repo.AuditLogRepository  = (*AuditLogRepoMock)(nil)
	_ repo.UserRepository      = (*UserRepoMock)(nil)
)

// =====================
// Payment gateway fake
// =====================

// fakeGateway は呼ばれた回数を数え、結果はテストから流す
type fakeGateway struct {
	mu      sync.Mutex
	calls   int
	err     error
	last    model.PaymentRequest
	results chan model.PaymentResult
}

func (g *fakeGateway) Charge(ctx context.Context, req model.PaymentRequest) (<-chan model.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	g.results = make(chan model.PaymentResult, 1)
	return g.results, nil
}

func (g *fakeGateway) send(r model.PaymentResult) {
	g.mu.Lock()
	ch := g.results
	g.mu.Unlock()
	ch <- r
	close(ch)
}

func (g *fakeGateway) closeWithoutResult() {
	g.mu.Lock()
	ch := g.results
	g.mu.Unlock()
	close(ch)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
