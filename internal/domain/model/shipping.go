package model

import "github.com/shopspring/decimal"

// ShippingPolicyは送料の決め方。
// FreeAboveが0のときは金額に関係なく常にFlatFee。
type ShippingPolicy struct {
	FlatFee   decimal.Decimal
	FreeAbove decimal.Decimal
}

func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{FlatFee: decimal.NewFromInt(100)}
}

func (p ShippingPolicy) ThresholdEnabled() bool {
	return p.FreeAbove.IsPositive()
}

func (p ShippingPolicy) Cost(subtotal decimal.Decimal) decimal.Decimal {
	if p.ThresholdEnabled() && subtotal.GreaterThanOrEqual(p.FreeAbove) {
		return decimal.Zero
	}
	return p.FlatFee
}

// 支払い画面に出す金額の内訳
type OrderSummary struct {
	ItemCount int64           `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

// total = subtotal + shipping + tax (税は行ごとのtaxPerUnit x 数量の合計)
func (p ShippingPolicy) Summarize(c *Cart) OrderSummary {
	subtotal := c.Subtotal()
	tax := c.TotalTax()
	shipping := p.Cost(subtotal)
	return OrderSummary{
		ItemCount: c.ItemCount(),
		Subtotal:  subtotal,
		Shipping:  shipping,
		Tax:       tax,
		Discount:  decimal.Zero,
		Total:     subtotal.Add(shipping).Add(tax),
	}
}
