// Package pricing считает цены со скидкой.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountAmount возвращает размер скидки в денежных единицах.
func DiscountAmount(price, percentage decimal.Decimal) decimal.Decimal {
	return price.Mul(percentage).Div(hundred)
}

// ApplyPercentage возвращает цену после скидки, округлённую до копеек.
// Цена не опускается ниже нуля.
func ApplyPercentage(price, percentage decimal.Decimal) decimal.Decimal {
	newPrice := price.Sub(DiscountAmount(price, percentage)).Round(2)
	if newPrice.IsNegative() {
		return decimal.Zero
	}
	return newPrice
}
