package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
)

type AddressDTO struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

type AddressCreateRequest struct {
	Label    string `json:"label"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
}

// 住所はチェックアウトで使う追加と選択だけ。更新・削除は持たない。
type AddressUsecase struct {
	addresses repository.AddressRepository
	now       func() time.Time
}

func NewAddressUsecase(addresses repository.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, now: time.Now}
}

// default優先の一覧
func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, ErrInternal
	}

	out := make([]AddressDTO, 0, len(list))
	for i := range list {
		out = append(out, toAddressDTO(&list[i]))
	}
	return out, nil
}

// Add は入力を検証して保存する。最初の住所はdefaultになる。
// 検証エラーは *model.ValidationError をそのまま返す（項目名付き）。
func (u *AddressUsecase) Add(ctx context.Context, userID int64, req AddressCreateRequest) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, ErrUnauthorized
	}

	now := u.now()
	a := model.Address{
		UserID:    userID,
		Label:     strings.TrimSpace(req.Label),
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     strings.TrimSpace(req.Phone),
		Street:    strings.TrimSpace(req.Street),
		City:      strings.TrimSpace(req.City),
		State:     strings.TrimSpace(req.State),
		Pincode:   strings.TrimSpace(req.Pincode),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Validate(); err != nil {
		return AddressDTO{}, err
	}

	//最初の1件かどうかは保存側がロックの中で決める
	created, err := u.addresses.CreateForUser(ctx, a)
	if err != nil {
		return AddressDTO{}, ErrInternal
	}
	return toAddressDTO(&created), nil
}

// FindOwned は本人の住所だけ返す。他人の住所は存在しない扱い。
func (u *AddressUsecase) FindOwned(ctx context.Context, userID int64, addressID int64) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, ErrUnauthorized
	}
	if addressID <= 0 {
		return model.Address{}, model.NewValidationError("address_id", "invalid address")
	}

	a, err := u.addresses.FindByID(ctx, addressID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Address{}, ErrNotFound
	}
	if err != nil {
		return model.Address{}, ErrInternal
	}
	if a.UserID != userID {
		return model.Address{}, ErrNotFound
	}
	return a, nil
}

func (u *AddressUsecase) Count(ctx context.Context, userID int64) (int, error) {
	n, err := u.addresses.CountByUserID(ctx, userID)
	if err != nil {
		return 0, ErrInternal
	}
	return int(n), nil
}

func toAddressDTO(a *model.Address) AddressDTO {
	return AddressDTO{
		ID:        a.ID,
		Label:     a.Label,
		FullName:  a.FullName,
		Phone:     a.Phone,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}
