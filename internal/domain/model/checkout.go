package model

import (
	"errors"
	"time"
)

type CheckoutStage string

const (
	CheckoutStageCart    CheckoutStage = "cart"
	CheckoutStageAddress CheckoutStage = "address"
	CheckoutStagePayment CheckoutStage = "payment"
)

type CheckoutStatus string

const (
	CheckoutStatusInProgress      CheckoutStatus = "in_progress"
	CheckoutStatusProcessing      CheckoutStatus = "processing"
	CheckoutStatusSucceeded       CheckoutStatus = "succeeded"
	CheckoutStatusCancelledByUser CheckoutStatus = "cancelled_by_user"
	CheckoutStatusFailed          CheckoutStatus = "failed"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSucceeded || s == CheckoutStatusCancelledByUser || s == CheckoutStatusFailed
}

func (s CheckoutStatus) String() string {
	return string(s)
}

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusInProgress: {CheckoutStatusProcessing},
	CheckoutStatusProcessing: {
		CheckoutStatusInProgress,
		CheckoutStatusSucceeded,
		CheckoutStatusCancelledByUser,
		CheckoutStatusFailed,
	},
	// ダイアログを閉じた後は同じセッションで再試行できる
	CheckoutStatusCancelledByUser: {CheckoutStatusProcessing, CheckoutStatusInProgress},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	// 決済処理中は確定ボタンを受け付けない
	ErrPaymentInFlight = errors.New("payment already in progress")
	// 成功/失敗で終わったセッション
	ErrSessionClosed = errors.New("checkout session is closed")
)

// CheckoutSessionは1回のチェックアウトの状態。永続化しない。
type CheckoutSession struct {
	ID                     string         `json:"id"`
	UserID                 int64          `json:"user_id"`
	Stage                  CheckoutStage  `json:"stage"`
	Status                 CheckoutStatus `json:"status"`
	SelectedAddressID      int64          `json:"selected_address_id,omitempty"`
	AttemptID              string         `json:"attempt_id,omitempty"`
	Attempts               int            `json:"attempts"`
	OrderID                int64          `json:"order_id,omitempty"`
	PaymentReference       string         `json:"payment_reference,omitempty"`
	FailureReason          string         `json:"failure_reason,omitempty"`
	ReconciliationRequired bool           `json:"reconciliation_required,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func NewCheckoutSession(id string, userID int64, now time.Time) *CheckoutSession {
	return &CheckoutSession{
		ID:        id,
		UserID:    userID,
		Stage:     CheckoutStageCart,
		Status:    CheckoutStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// 画面遷移できる状態か（処理中・終了済みは不可）
func (s *CheckoutSession) navigable() error {
	switch s.Status {
	case CheckoutStatusProcessing:
		return ErrPaymentInFlight
	case CheckoutStatusSucceeded, CheckoutStatusFailed:
		return ErrSessionClosed
	}
	return nil
}

// Proceedは次のステージへ進む。ガードに失敗したらステージは変えない。
func (s *CheckoutSession) Proceed(itemCount int64, addressCount int, now time.Time) error {
	if err := s.navigable(); err != nil {
		return err
	}
	switch s.Stage {
	case CheckoutStageCart:
		if itemCount <= 0 {
			return NewValidationError("cart", "cart is empty")
		}
		s.Stage = CheckoutStageAddress
	case CheckoutStageAddress:
		if addressCount == 0 {
			return NewValidationError("address", "add a delivery address")
		}
		if s.SelectedAddressID == 0 {
			return NewValidationError("selected_address_id", "select a delivery address")
		}
		s.Stage = CheckoutStagePayment
	default:
		return ErrIllegalTransition
	}
	s.UpdatedAt = now
	return nil
}

func (s *CheckoutSession) Back(now time.Time) error {
	if err := s.navigable(); err != nil {
		return err
	}
	switch s.Stage {
	case CheckoutStageAddress:
		s.Stage = CheckoutStageCart
	case CheckoutStagePayment:
		s.Stage = CheckoutStageAddress
	default:
		return ErrIllegalTransition
	}
	s.Status = CheckoutStatusInProgress
	s.UpdatedAt = now
	return nil
}

// 住所の選択は住所ステージのみ。住所一覧は変更しない。
func (s *CheckoutSession) SelectAddress(addressID int64, now time.Time) error {
	if err := s.navigable(); err != nil {
		return err
	}
	if s.Stage != CheckoutStageAddress {
		return ErrIllegalTransition
	}
	if addressID <= 0 {
		return NewValidationError("address_id", "invalid address")
	}
	s.SelectedAddressID = addressID
	s.UpdatedAt = now
	return nil
}

// BeginPaymentは決済を1件だけ開始する。処理中なら ErrPaymentInFlight。
func (s *CheckoutSession) BeginPayment(attemptID string, now time.Time) error {
	if s.Status == CheckoutStatusProcessing {
		return ErrPaymentInFlight
	}
	if s.Status == CheckoutStatusSucceeded || s.Status == CheckoutStatusFailed {
		return ErrSessionClosed
	}
	if s.Stage != CheckoutStagePayment || s.SelectedAddressID == 0 {
		return ErrIllegalTransition
	}
	if !CanTransitionTo(s.Status, CheckoutStatusProcessing) {
		return ErrIllegalTransition
	}
	s.Status = CheckoutStatusProcessing
	s.AttemptID = attemptID
	s.Attempts++
	s.FailureReason = ""
	s.UpdatedAt = now
	return nil
}

// AbortPaymentはゲートウェイに届かなかった場合。支払いステージに戻す。
func (s *CheckoutSession) AbortPayment(reason string, now time.Time) error {
	if s.Status != CheckoutStatusProcessing {
		return ErrIllegalTransition
	}
	s.Status = CheckoutStatusInProgress
	s.AttemptID = ""
	s.FailureReason = reason
	s.UpdatedAt = now
	return nil
}

// Settleは処理中の試行を終了状態にする。処理中でなければ何もしない（重複コールバック）。
func (s *CheckoutSession) Settle(attemptID string, to CheckoutStatus, now time.Time) error {
	if s.Status != CheckoutStatusProcessing || s.AttemptID != attemptID {
		return ErrIllegalTransition
	}
	if !to.IsTerminal() || !CanTransitionTo(s.Status, to) {
		return ErrIllegalTransition
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

func (s *CheckoutSession) Processing() bool {
	return s.Status == CheckoutStatusProcessing
}

// 成功・失敗で終わったセッションは破棄する
func (s *CheckoutSession) Finished() bool {
	return s.Status == CheckoutStatusSucceeded || s.Status == CheckoutStatusFailed
}
