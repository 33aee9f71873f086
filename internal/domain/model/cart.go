package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの1行（1商品につき1行）
type CartLine struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TaxPerUnit decimal.Decimal `json:"tax_per_unit"`
	Quantity   int64           `json:"quantity"`
	ImageRef   string          `json:"image_ref,omitempty"`
	Category   string          `json:"category,omitempty"`
}

// Cartはユーザーのセッション中のカート。
// Linesの並びは追加順（表示順）。同じProductIDの行は1つだけ。
type Cart struct {
	UserID    int64      `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCart(userID int64) *Cart {
	return &Cart{UserID: userID, Lines: []CartLine{}}
}

// AddItemは同一商品なら数量加算、なければ末尾に追加する。
// 在庫チェックは呼び出し側の責務。quantityが1未満なら何もしない。
func (c *Cart) AddItem(p Product, quantity int64) {
	if quantity < 1 {
		return
	}
	if i := c.indexOf(p.ID); i >= 0 {
		c.Lines[i].Quantity += quantity
		return
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID:  p.ID,
		Name:       p.Name,
		UnitPrice:  p.Price,
		TaxPerUnit: p.TaxPerUnit,
		Quantity:   quantity,
		ImageRef:   p.ImageRef,
		Category:   p.Category,
	})
}

// 無ければno-op
func (c *Cart) RemoveItem(productID int64) {
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

// 数量は0で下限クランプ。0になった行は削除する。
func (c *Cart) UpdateQuantity(productID int64, quantity int64) {
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	c.Lines[i].Quantity = quantity
}

func (c *Cart) Clear() {
	c.Lines = []CartLine{}
}

// 以下の集計値はキャッシュせず毎回計算する。

func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return sum
}

func (c *Cart) TotalTax() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.TaxPerUnit.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return sum
}

func (c *Cart) ItemCount() int64 {
	var n int64
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return c.ItemCount() == 0
}

// Snapshotは注文用のコピー（以後のカート変更の影響を受けない）
func (c *Cart) Snapshot() []CartLine {
	out := make([]CartLine, len(c.Lines))
	copy(out, c.Lines)
	return out
}

func (c *Cart) indexOf(productID int64) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}
