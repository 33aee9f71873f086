package usecase

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartUsecase は /cart の業務ロジックです。
// 変更はリポジトリのUpdateに渡した関数の中で行い、Cart自体はI/Oを持ちません。
type CartUsecase struct {
	carts    repo.CartRepository
	products repo.ProductRepository
	logger   *zap.Logger
}

func NewCartUsecase(carts repo.CartRepository, products repo.ProductRepository, logger *zap.Logger) *CartUsecase {
	return &CartUsecase{
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

type CartLineResponse struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TaxPerUnit decimal.Decimal `json:"tax_per_unit"`
	Quantity   int64           `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
	ImageRef   string          `json:"image_ref,omitempty"`
	Category   string          `json:"category,omitempty"`
}

type CartResponse struct {
	Items     []CartLineResponse `json:"items"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	TotalTax  decimal.Decimal    `json:"total_tax"`
	ItemCount int64              `json:"item_count"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.carts.Load(ctx, userID)
	if err != nil {
		u.logger.Error("cart load failed", zap.Int64("user_id", userID), zap.Error(err))
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "cart store error")
	}
	return toCartResponse(cart), nil
}

// AddItem はカタログで価格・在庫を確認してから追加する（同一商品は数量加算）。
func (u *CartUsecase) AddItem(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	p, err := u.products.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "product not available")
	}

	return u.update(ctx, userID, func(cart *model.Cart) error {
		//既にカートにある分も含めて在庫を超えないこと
		if inCart(cart, p.ID)+in.Quantity > p.Stock {
			return NewHTTPError(http.StatusConflict, "out of stock")
		}
		cart.AddItem(p, in.Quantity)
		return nil
	})
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, productID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	return u.update(ctx, userID, func(cart *model.Cart) error {
		cart.RemoveItem(productID)
		return nil
	})
}

// UpdateQuantity は数量を置き換える。0以下なら行を削除する。
// 増やす場合のみ在庫を確認する。
func (u *CartUsecase) UpdateQuantity(ctx context.Context, userID int64, productID int64, quantity int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	return u.update(ctx, userID, func(cart *model.Cart) error {
		if quantity > inCart(cart, productID) {
			p, err := u.products.FindByID(ctx, productID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if err == nil && quantity > p.Stock {
				return NewHTTPError(http.StatusConflict, "out of stock")
			}
		}
		cart.UpdateQuantity(productID, quantity)
		return nil
	})
}

func (u *CartUsecase) Clear(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.carts.Delete(ctx, userID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "cart store error")
	}
	return nil
}

// update はカートの読み書きをユーザー単位で直列化して行う
func (u *CartUsecase) update(ctx context.Context, userID int64, fn func(cart *model.Cart) error) (CartResponse, error) {
	cart, err := u.carts.Update(ctx, userID, fn)
	if err != nil {
		var he *HTTPError
		if errors.As(err, &he) {
			return CartResponse{}, he
		}
		u.logger.Error("cart update failed", zap.Int64("user_id", userID), zap.Error(err))
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "cart store error")
	}
	return toCartResponse(cart), nil
}

func inCart(cart *model.Cart, productID int64) int64 {
	for _, l := range cart.Lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

func toCartResponse(cart *model.Cart) CartResponse {
	items := make([]CartLineResponse, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		items = append(items, CartLineResponse{
			ProductID:  l.ProductID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			TaxPerUnit: l.TaxPerUnit,
			Quantity:   l.Quantity,
			LineTotal:  l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)),
			ImageRef:   l.ImageRef,
			Category:   l.Category,
		})
	}
	return CartResponse{
		Items:     items,
		Subtotal:  cart.Subtotal(),
		TotalTax:  cart.TotalTax(),
		ItemCount: cart.ItemCount(),
	}
}
