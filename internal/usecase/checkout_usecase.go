package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutUsecase はユーザーごとに1つのチェックアウトセッションをメモリ上で管理する。
// セッションは永続化しない（再起動で消える）。
type CheckoutUsecase struct {
	mu       sync.Mutex
	sessions map[int64]*checkoutEntry

	carts     repository.CartRepository
	addresses *AddressUsecase
	tx        repository.TransactionManager
	gateway   PaymentGateway
	shipping  model.ShippingPolicy
	currency  string
	logger    *zap.Logger

	now   func() time.Time
	newID func() string

	// 決済結果待ちのgoroutine
	inflight sync.WaitGroup
}

// checkoutEntry.mu はセッションの状態遷移を直列化する。
type checkoutEntry struct {
	mu        sync.Mutex
	session   *model.CheckoutSession
	customer  model.SessionUser
	reconcile *ReconciliationError
}

type CheckoutView struct {
	model.CheckoutSession
	Message string `json:"message,omitempty"`
}

func NewCheckoutUsecase(
	carts repository.CartRepository,
	addresses *AddressUsecase,
	tx repository.TransactionManager,
	gateway PaymentGateway,
	shipping model.ShippingPolicy,
	currency string,
	logger *zap.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		sessions:  map[int64]*checkoutEntry{},
		carts:     carts,
		addresses: addresses,
		tx:        tx,
		gateway:   gateway,
		shipping:  shipping,
		currency:  currency,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Begin はカート確認ステージからセッションを始める。
// 未ログインなら ErrLoginRequired（呼び出し側はログイン画面へ誘導する）。
// 以前のセッションは破棄するが、決済処理中なら開始できない。
func (u *CheckoutUsecase) Begin(ctx context.Context, sess model.Session) (CheckoutView, error) {
	if !sess.Authenticated || sess.User.ID <= 0 {
		return CheckoutView{}, ErrLoginRequired
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if prev, ok := u.sessions[sess.User.ID]; ok {
		prev.mu.Lock()
		processing := prev.session.Processing()
		prev.mu.Unlock()
		if processing {
			return CheckoutView{}, model.ErrPaymentInFlight
		}
	}

	s := model.NewCheckoutSession(u.newID(), sess.User.ID, u.now())
	u.sessions[sess.User.ID] = &checkoutEntry{session: s, customer: sess.User}

	u.logger.Info("checkout started",
		zap.String("checkout_id", s.ID),
		zap.Int64("user_id", s.UserID),
	)
	return CheckoutView{CheckoutSession: *s}, nil
}

// Get は現在のセッションを返す。決済後に注文記録が失敗していれば
// *ReconciliationError も一緒に返す。
func (u *CheckoutUsecase) Get(ctx context.Context, userID int64) (CheckoutView, error) {
	e, err := u.entry(userID)
	if err != nil {
		return CheckoutView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	view := toCheckoutView(e.session)
	if e.reconcile != nil {
		return view, e.reconcile
	}
	return view, nil
}

// Proceed は次のステージに進む。カートは毎回読み直す。
func (u *CheckoutUsecase) Proceed(ctx context.Context, userID int64) (CheckoutView, error) {
	e, err := u.entry(userID)
	if err != nil {
		return CheckoutView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cart, err := u.carts.Load(ctx, userID)
	if err != nil {
		u.logger.Error("cart load failed", zap.Int64("user_id", userID), zap.Error(err))
		return CheckoutView{}, ErrInternal
	}

	addressCount := 0
	if e.session.Stage == model.CheckoutStageAddress {
		addressCount, err = u.addresses.Count(ctx, userID)
		if err != nil {
			return CheckoutView{}, err
		}
	}

	from := e.session.Stage
	if err := e.session.Proceed(cart.ItemCount(), addressCount, u.now()); err != nil {
		return CheckoutView{}, err
	}

	u.logger.Info("checkout stage advanced",
		zap.String("checkout_id", e.session.ID),
		zap.String("from", string(from)),
		zap.String("to", string(e.session.Stage)),
	)
	return toCheckoutView(e.session), nil
}

func (u *CheckoutUsecase) Back(ctx context.Context, userID int64) (CheckoutView, error) {
	e, err := u.entry(userID)
	if err != nil {
		return CheckoutView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.session.Back(u.now()); err != nil {
		return CheckoutView{}, err
	}
	return toCheckoutView(e.session), nil
}

// AddAddress は住所を追加してそのまま選択する（住所ステージのみ）。
func (u *CheckoutUsecase) AddAddress(ctx context.Context, userID int64, req AddressCreateRequest) (AddressDTO, CheckoutView, error) {
	e, err := u.entry(userID)
	if err != nil {
		return AddressDTO{}, CheckoutView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	//保存前にステージを確認（住所だけ作られて選択されない状態を避ける）
	if e.session.Processing() {
		return AddressDTO{}, CheckoutView{}, model.ErrPaymentInFlight
	}
	if e.session.Finished() {
		return AddressDTO{}, CheckoutView{}, model.ErrSessionClosed
	}
	if e.session.Stage != model.CheckoutStageAddress {
		return AddressDTO{}, CheckoutView{}, model.ErrIllegalTransition
	}

	created, err := u.addresses.Add(ctx, userID, req)
	if err != nil {
		return AddressDTO{}, CheckoutView{}, err
	}
	if err := e.session.SelectAddress(created.ID, u.now()); err != nil {
		return AddressDTO{}, CheckoutView{}, err
	}
	return created, toCheckoutView(e.session), nil
}

// SelectAddress は本人の住所だけ選択できる。住所一覧は変更しない。
func (u *CheckoutUsecase) SelectAddress(ctx context.Context, userID int64, addressID int64) (CheckoutView, error) {
	e, err := u.entry(userID)
	if err != nil {
		return CheckoutView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := u.addresses.FindOwned(ctx, userID, addressID); err != nil {
		return CheckoutView{}, err
	}
	if err := e.session.SelectAddress(addressID, u.now()); err != nil {
		return CheckoutView{}, err
	}
	return toCheckoutView(e.session), nil
}

// Summary は現在のカートから金額を計算する（キャッシュしない）。
func (u *CheckoutUsecase) Summary(ctx context.Context, userID int64) (model.OrderSummary, error) {
	if _, err := u.entry(userID); err != nil {
		return model.OrderSummary{}, err
	}

	cart, err := u.carts.Load(ctx, userID)
	if err != nil {
		return model.OrderSummary{}, ErrInternal
	}
	return u.shipping.Summarize(cart), nil
}

// Close はセッションを破棄する。決済処理中は閉じられない。
func (u *CheckoutUsecase) Close(ctx context.Context, userID int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	e, ok := u.sessions[userID]
	if !ok {
		return ErrCheckoutNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Processing() {
		return model.ErrPaymentInFlight
	}

	delete(u.sessions, userID)
	u.logger.Info("checkout closed",
		zap.String("checkout_id", e.session.ID),
		zap.String("status", e.session.Status.String()),
	)
	return nil
}

// Wait は結果待ちの決済がすべて確定するまで待つ（シャットダウン用）。
// ctxが先に終われば、まだ処理中の決済参照をログに残して ctx.Err() を返す。
func (u *CheckoutUsecase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	pending := u.Pending()
	for _, ref := range pending {
		u.logger.Warn("payment still pending at shutdown", zap.String("order_ref", ref))
	}
	return fmt.Errorf("%d payment(s) still pending: %w", len(pending), ctx.Err())
}

// Pending は決済結果待ちのorder refを返す
func (u *CheckoutUsecase) Pending() []string {
	u.mu.Lock()
	defer u.mu.Unlock()

	refs := make([]string, 0)
	for _, e := range u.sessions {
		e.mu.Lock()
		if e.session.Processing() {
			refs = append(refs, e.session.AttemptID)
		}
		e.mu.Unlock()
	}
	sort.Strings(refs)
	return refs
}

func (u *CheckoutUsecase) entry(userID int64) (*checkoutEntry, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	e, ok := u.sessions[userID]
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	return e, nil
}

func toCheckoutView(s *model.CheckoutSession) CheckoutView {
	v := CheckoutView{CheckoutSession: *s}
	switch s.Status {
	case model.CheckoutStatusSucceeded:
		v.Message = "payment received, order placed"
	case model.CheckoutStatusCancelledByUser:
		v.Message = "payment cancelled, you can retry"
	case model.CheckoutStatusFailed:
		v.Message = "payment failed"
	}
	if s.ReconciliationRequired {
		v.Message = "payment received but the order could not be recorded, contact support with your payment reference"
	}
	return v
}

// errors.Is で model 側のエラーも判定できるようにまとめる
func IsCheckoutConflict(err error) bool {
	return errors.Is(err, model.ErrPaymentInFlight) ||
		errors.Is(err, model.ErrSessionClosed) ||
		errors.Is(err, model.ErrIllegalTransition)
}
