package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	upiPayeeName = "PrintShop"
	upiCurrency  = "INR"
)

// UPIPaymentURI builds the deep link a wallet app opens to pay the shop.
// It returns false until the shop's UPI id, the order id and a positive
// total are all known.
func UPIPaymentURI(upiID, orderID string, total decimal.Decimal) (string, bool) {
	if upiID == "" || orderID == "" || !total.IsPositive() {
		return "", false
	}
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=%s&tn=Print_Order_%s",
		upiID, upiPayeeName, total.StringFixed(2), upiCurrency, orderID), true
}
