package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const buyerID int64 = 1

type checkoutFixture struct {
	uc        *usecase.CheckoutUsecase
	carts     *CartRepoMock
	addresses *AddressRepoMock
	orders    *OrderRepoMock
	items     *OrderItemRepoMock
	inventory *InventoryRepoMock
	audits    *AuditLogRepoMock
	gateway   *fakeGateway
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	f := &checkoutFixture{
		carts:     new(CartRepoMock),
		addresses: new(AddressRepoMock),
		orders:    new(OrderRepoMock),
		items:     new(OrderItemRepoMock),
		inventory: new(InventoryRepoMock),
		audits:    new(AuditLogRepoMock),
		gateway:   &fakeGateway{},
	}
	tx := &txManagerStub{repos: &txReposStub{
		orders:     f.orders,
		orderItems: f.items,
		inventory:  f.inventory,
		auditLogs:  f.audits,
	}}
	f.uc = usecase.NewCheckoutUsecase(
		f.carts,
		usecase.NewAddressUsecase(f.addresses),
		tx,
		f.gateway,
		model.DefaultShippingPolicy(),
		"INR",
		zap.NewNop(),
	)
	return f
}

func buyerSession() model.Session {
	return model.Session{
		Authenticated: true,
		User:          model.SessionUser{ID: buyerID, Name: "Asha", Email: "asha@example.com"},
	}
}

func homeAddress() model.Address {
	return model.Address{
		ID:       7,
		UserID:   buyerID,
		FullName: "Asha Rao",
		Phone:    "9876543210",
		Street:   "12 MG Road",
		City:     "Bengaluru",
		Pincode:  "560001",
	}
}

// 500x2(税25) + 1000x1(税0)
func filledCart() *model.Cart {
	c := model.NewCart(buyerID)
	c.AddItem(model.Product{ID: 1, Name: "Kurta", Price: decimal.NewFromInt(500), TaxPerUnit: decimal.NewFromInt(25)}, 2)
	c.AddItem(model.Product{ID: 2, Name: "Saree", Price: decimal.NewFromInt(1000)}, 1)
	return c
}

// 住所を選んで支払いステージまで進める（カートのLoadは呼び出し側で設定）
func (f *checkoutFixture) toPaymentStage(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(homeAddress(), nil)
	f.addresses.On("CountByUserID", mock.Anything, buyerID).Return(int64(1), nil)

	_, err := f.uc.Begin(ctx, buyerSession())
	require.NoError(t, err)
	_, err = f.uc.Proceed(ctx, buyerID)
	require.NoError(t, err)
	_, err = f.uc.SelectAddress(ctx, buyerID, 7)
	require.NoError(t, err)
	view, err := f.uc.Proceed(ctx, buyerID)
	require.NoError(t, err)
	require.Equal(t, model.CheckoutStagePayment, view.Stage)
}

func (f *checkoutFixture) session(t *testing.T) usecase.CheckoutView {
	t.Helper()
	view, err := f.uc.Get(context.Background(), buyerID)
	require.NoError(t, err)
	return view
}

// =====================
// 開始・ステージ遷移
// =====================

func TestCheckout_BeginRequiresLogin(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.uc.Begin(context.Background(), model.AnonymousSession())
	assert.ErrorIs(t, err, usecase.ErrLoginRequired)

	//セッションは作られない（住所ステージに到達しない）
	_, err = f.uc.Get(context.Background(), buyerID)
	assert.ErrorIs(t, err, usecase.ErrCheckoutNotFound)
}

func TestCheckout_ProceedWithEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(model.NewCart(buyerID), nil)

	_, err := f.uc.Begin(context.Background(), buyerSession())
	require.NoError(t, err)

	_, err = f.uc.Proceed(context.Background(), buyerID)
	ve, ok := model.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "cart", ve.Field)
	assert.Equal(t, model.CheckoutStageCart, f.session(t).Stage)
}

func TestCheckout_AddressStageRequiresSelection(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.addresses.On("CountByUserID", mock.Anything, buyerID).Return(int64(1), nil)

	_, err := f.uc.Begin(ctx, buyerSession())
	require.NoError(t, err)
	_, err = f.uc.Proceed(ctx, buyerID)
	require.NoError(t, err)

	_, err = f.uc.Proceed(ctx, buyerID)
	ve, ok := model.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "selected_address_id", ve.Field)
	assert.Equal(t, model.CheckoutStageAddress, f.session(t).Stage)
}

func TestCheckout_AddAddressSelectsIt(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.addresses.On("CreateForUser", mock.Anything, mock.MatchedBy(func(a model.Address) bool {
		return a.Pincode == "560001"
	})).Return(model.Address{ID: 9, UserID: buyerID, Pincode: "560001", IsDefault: true}, nil).Once()

	_, err := f.uc.Begin(ctx, buyerSession())
	require.NoError(t, err)
	_, err = f.uc.Proceed(ctx, buyerID)
	require.NoError(t, err)

	created, view, err := f.uc.AddAddress(ctx, buyerID, usecase.AddressCreateRequest{
		FullName: "Asha Rao", Phone: "9876543210", Street: "12 MG Road", City: "Bengaluru", Pincode: "560001",
	})
	require.NoError(t, err)
	assert.True(t, created.IsDefault)
	assert.Equal(t, int64(9), view.SelectedAddressID)
}

func TestCheckout_AddAddressValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)

	_, err := f.uc.Begin(ctx, buyerSession())
	require.NoError(t, err)
	_, err = f.uc.Proceed(ctx, buyerID)
	require.NoError(t, err)

	_, _, err = f.uc.AddAddress(ctx, buyerID, usecase.AddressCreateRequest{
		FullName: "Asha Rao", Phone: "9876543210", Street: "12 MG Road", City: "Bengaluru", Pincode: "5600",
	})
	ve, ok := model.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "pincode", ve.Field)
	assert.Zero(t, f.session(t).SelectedAddressID)
	f.addresses.AssertNotCalled(t, "CreateForUser", mock.Anything, mock.Anything)
}

func TestCheckout_SelectForeignAddress(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	foreign := homeAddress()
	foreign.UserID = 99
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(foreign, nil)

	_, err := f.uc.Begin(ctx, buyerSession())
	require.NoError(t, err)
	_, err = f.uc.Proceed(ctx, buyerID)
	require.NoError(t, err)

	_, err = f.uc.SelectAddress(ctx, buyerID, 7)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestCheckout_SummaryUsesCurrentCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)

	_, err := f.uc.Begin(context.Background(), buyerSession())
	require.NoError(t, err)

	s, err := f.uc.Summary(context.Background(), buyerID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2000).Equal(s.Subtotal))
	assert.True(t, decimal.NewFromInt(50).Equal(s.Tax))
	assert.True(t, decimal.NewFromInt(100).Equal(s.Shipping))
	assert.True(t, decimal.NewFromInt(2150).Equal(s.Total))
}

// =====================
// 決済結果
// =====================

func TestConfirmPayment_Dismissed(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	intent, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(215000), intent.AmountMinorUnits)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "9876543210", intent.Customer.Phone)

	f.gateway.send(model.PaymentDismissed{})
	require.NoError(t, f.uc.Wait(context.Background()))

	view := f.session(t)
	assert.Equal(t, model.CheckoutStatusCancelledByUser, view.Status)
	assert.Equal(t, model.CheckoutStagePayment, view.Stage)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	//同じセッションで再試行できる
	_, err = f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.gateway.callCount())
}

func TestConfirmPayment_Failure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	f.orders.On("FindByIdempotencyKey", mock.Anything, buyerID, mock.Anything).Return(model.Order{}, false, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusFailed &&
			o.PaymentStatus == model.PaymentStatusFailed &&
			o.FailureReason == "card declined" &&
			o.DeliveryAddress.Pincode == "560001" &&
			len(o.Items) == 2
	})).Return(int64(41), nil).Once()
	f.items.On("CreateBulk", mock.Anything, int64(41), mock.Anything).Return(nil)

	_, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)

	f.gateway.send(model.PaymentFailure{Reason: "card declined"})
	require.NoError(t, f.uc.Wait(context.Background()))

	view := f.session(t)
	assert.Equal(t, model.CheckoutStatusFailed, view.Status)
	assert.Equal(t, int64(41), view.OrderID)
	f.orders.AssertNumberOfCalls(t, "Create", 1)
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything)

	//失敗で終わったセッションは進められない
	_, err = f.uc.ConfirmPayment(context.Background(), buyerID)
	assert.ErrorIs(t, err, model.ErrSessionClosed)
}

func TestConfirmPayment_Success(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	f.orders.On("FindByIdempotencyKey", mock.Anything, buyerID, mock.Anything).Return(model.Order{}, false, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusPending &&
			o.PaymentStatus == model.PaymentStatusPaid &&
			o.PaymentReference == "txn_1" &&
			o.Total.Equal(decimal.NewFromInt(2150))
	})).Return(int64(55), nil).Once()
	f.items.On("CreateBulk", mock.Anything, int64(55), mock.Anything).Return(nil)
	//在庫1に2個 → 実際に減るのは1
	f.inventory.On("DecrementStock", mock.Anything, int64(1), int64(2)).Return(int64(1), nil)
	f.inventory.On("DecrementStock", mock.Anything, int64(2), int64(1)).Return(int64(1), nil)
	f.inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.ProductID == 1 && a.Requested == 2 && a.Delta == -1 &&
			a.Reason == model.InventoryReasonSale && a.OrderID != nil && *a.OrderID == 55
	})).Return(nil).Once()
	f.inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.ProductID == 2 && a.Delta == -1
	})).Return(nil).Once()
	f.carts.On("Delete", mock.Anything, buyerID).Return(nil).Once()

	intent, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)

	f.gateway.send(model.PaymentSuccess{TransactionID: "txn_1", OrderRef: intent.OrderRef})
	require.NoError(t, f.uc.Wait(context.Background()))

	view := f.session(t)
	assert.Equal(t, model.CheckoutStatusSucceeded, view.Status)
	assert.Equal(t, int64(55), view.OrderID)
	assert.Equal(t, "txn_1", view.PaymentReference)
	assert.False(t, view.ReconciliationRequired)

	f.orders.AssertNumberOfCalls(t, "Create", 1)
	f.inventory.AssertExpectations(t)
	f.carts.AssertCalled(t, "Delete", mock.Anything, buyerID)
	f.audits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfirmPayment_SingleInFlight(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	_, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)

	_, err = f.uc.ConfirmPayment(context.Background(), buyerID)
	assert.ErrorIs(t, err, model.ErrPaymentInFlight)
	assert.Equal(t, 1, f.gateway.callCount())

	//処理中は戻る・閉じる・再開始もできない
	_, err = f.uc.Back(context.Background(), buyerID)
	assert.ErrorIs(t, err, model.ErrPaymentInFlight)
	assert.ErrorIs(t, f.uc.Close(context.Background(), buyerID), model.ErrPaymentInFlight)
	_, err = f.uc.Begin(context.Background(), buyerSession())
	assert.ErrorIs(t, err, model.ErrPaymentInFlight)

	f.gateway.send(model.PaymentDismissed{})
	require.NoError(t, f.uc.Wait(context.Background()))
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_WaitGivesUpOnUndeliveredPayment(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newCheckoutFixture(t)
	f.uc = usecase.NewCheckoutUsecase(
		f.carts,
		usecase.NewAddressUsecase(f.addresses),
		&txManagerStub{repos: &txReposStub{orders: f.orders, orderItems: f.items, inventory: f.inventory, auditLogs: f.audits}},
		f.gateway,
		model.DefaultShippingPolicy(),
		"INR",
		zap.New(core),
	)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	intent, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)

	//結果が届かないまま期限が来る
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = f.uc.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, []string{intent.OrderRef}, f.uc.Pending())
	pending := logs.FilterMessage("payment still pending at shutdown").All()
	require.Len(t, pending, 1)
	assert.Equal(t, intent.OrderRef, pending[0].ContextMap()["order_ref"])

	//後から届けば通常どおり確定する
	f.gateway.send(model.PaymentDismissed{})
	require.NoError(t, f.uc.Wait(context.Background()))
	assert.Empty(t, f.uc.Pending())
}

func TestConfirmPayment_GatewayUnreachable(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)
	f.gateway.err = errors.New("checkout script failed to load")

	_, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	assert.ErrorIs(t, err, usecase.ErrGatewayUnavailable)

	view := f.session(t)
	assert.Equal(t, model.CheckoutStatusInProgress, view.Status)
	assert.Equal(t, model.CheckoutStagePayment, view.Stage)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfirmPayment_CartEmptiedMidFlow(t *testing.T) {
	f := newCheckoutFixture(t)
	//カート→住所、住所→支払いの2回は中身あり、確定時は空
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil).Times(2)
	f.carts.On("Load", mock.Anything, buyerID).Return(model.NewCart(buyerID), nil)
	f.toPaymentStage(t)

	_, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	ve, ok := model.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "cart", ve.Field)
	assert.Equal(t, 0, f.gateway.callCount())
	assert.Equal(t, model.CheckoutStatusInProgress, f.session(t).Status)
}

func TestConfirmPayment_ClosedChannelIsFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)
	f.orders.On("FindByIdempotencyKey", mock.Anything, buyerID, mock.Anything).Return(model.Order{}, false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(3), nil).Once()
	f.items.On("CreateBulk", mock.Anything, int64(3), mock.Anything).Return(nil)

	_, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)

	f.gateway.closeWithoutResult()
	require.NoError(t, f.uc.Wait(context.Background()))

	assert.Equal(t, model.CheckoutStatusFailed, f.session(t).Status)
}

func TestConfirmPayment_OrderNotRecordedNeedsReconciliation(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	f.orders.On("FindByIdempotencyKey", mock.Anything, buyerID, mock.Anything).Return(model.Order{}, false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection refused"))
	f.audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionReconcilePayment && l.Reference == "txn_7" && l.AfterJSON != ""
	})).Return(nil).Once()
	f.inventory.On("DecrementStock", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	f.inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.OrderID == nil
	})).Return(nil)
	f.carts.On("Delete", mock.Anything, buyerID).Return(nil).Once()

	intent, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)

	f.gateway.send(model.PaymentSuccess{TransactionID: "txn_7", OrderRef: intent.OrderRef})
	require.NoError(t, f.uc.Wait(context.Background()))

	view, err := f.uc.Get(context.Background(), buyerID)
	re, ok := usecase.AsReconciliationError(err)
	require.True(t, ok)
	assert.Equal(t, "txn_7", re.TransactionID)
	assert.Equal(t, model.CheckoutStatusSucceeded, view.Status)
	assert.True(t, view.ReconciliationRequired)

	f.audits.AssertExpectations(t)
	f.inventory.AssertNumberOfCalls(t, "DecrementStock", 2)
	f.carts.AssertCalled(t, "Delete", mock.Anything, buyerID)
}

func TestConfirmPayment_ExistingOrderForAttemptIsReused(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	f.orders.On("FindByIdempotencyKey", mock.Anything, buyerID, mock.Anything).Return(model.Order{ID: 77}, true, nil)
	f.inventory.On("DecrementStock", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	f.inventory.On("CreateAdjustment", mock.Anything, mock.Anything).Return(nil)
	f.carts.On("Delete", mock.Anything, buyerID).Return(nil)

	intent, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)
	f.gateway.send(model.PaymentSuccess{TransactionID: "txn_2", OrderRef: intent.OrderRef})
	require.NoError(t, f.uc.Wait(context.Background()))

	assert.Equal(t, int64(77), f.session(t).OrderID)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfirmPayment_ConcurrentOrderCreateIsReused(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.On("Load", mock.Anything, buyerID).Return(filledCart(), nil)
	f.toPaymentStage(t)

	//最初の照会では無く、作成で一意制約に当たる
	f.orders.On("FindByIdempotencyKey", mock.Anything, buyerID, mock.Anything).Return(model.Order{}, false, nil).Once()
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(0), repo.ErrDuplicate).Once()
	f.orders.On("FindByIdempotencyKey", mock.Anything, buyerID, mock.Anything).Return(model.Order{ID: 78}, true, nil).Once()
	f.inventory.On("DecrementStock", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	f.inventory.On("CreateAdjustment", mock.Anything, mock.Anything).Return(nil)
	f.carts.On("Delete", mock.Anything, buyerID).Return(nil)

	intent, err := f.uc.ConfirmPayment(context.Background(), buyerID)
	require.NoError(t, err)
	f.gateway.send(model.PaymentSuccess{TransactionID: "txn_3", OrderRef: intent.OrderRef})
	require.NoError(t, f.uc.Wait(context.Background()))

	s := f.session(t)
	assert.Equal(t, int64(78), s.OrderID)
	assert.False(t, s.ReconciliationRequired)
	f.items.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_CloseDiscardsSession(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.uc.Begin(context.Background(), buyerSession())
	require.NoError(t, err)
	require.NoError(t, f.uc.Close(context.Background(), buyerID))

	_, err = f.uc.Get(context.Background(), buyerID)
	assert.ErrorIs(t, err, usecase.ErrCheckoutNotFound)
	assert.ErrorIs(t, f.uc.Close(context.Background(), buyerID), usecase.ErrCheckoutNotFound)
}
