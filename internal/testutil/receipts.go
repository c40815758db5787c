package testutil

import (
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// ReceiptBuilder provides a fluent interface for constructing test receipts.
type ReceiptBuilder struct {
	receipt model.Receipt
}

// NewReceipt starts a receipt for user u1 at Kaufland dated mid May 2026.
func NewReceipt(id string) *ReceiptBuilder {
	return &ReceiptBuilder{receipt: model.Receipt{
		ID:           id,
		UserID:       "u1",
		MerchantName: "Kaufland",
		PurchaseDate: time.Date(2026, 5, 15, 10, 0, 0, 0, time.UTC),
	}}
}

// ForUser sets the owning user.
func (b *ReceiptBuilder) ForUser(userID string) *ReceiptBuilder {
	b.receipt.UserID = userID
	return b
}

// At sets the merchant name as printed on the receipt.
func (b *ReceiptBuilder) At(merchant string) *ReceiptBuilder {
	b.receipt.MerchantName = merchant
	return b
}

// On sets the purchase date.
func (b *ReceiptBuilder) On(date time.Time) *ReceiptBuilder {
	b.receipt.PurchaseDate = date
	return b
}

// WithItem appends a line.
func (b *ReceiptBuilder) WithItem(name string, quantity, unitPrice float64) *ReceiptBuilder {
	b.receipt.Items = append(b.receipt.Items, model.RawLineItem{
		Name:       name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: quantity * unitPrice,
	})
	return b
}

// WithTotal sets the declared total. Without it Build uses the sum of lines.
func (b *ReceiptBuilder) WithTotal(total float64) *ReceiptBuilder {
	b.receipt.DeclaredTotal = total
	return b
}

// Build returns a copy of the receipt.
func (b *ReceiptBuilder) Build() *model.Receipt {
	receipt := b.receipt
	receipt.Items = append([]model.RawLineItem(nil), b.receipt.Items...)
	if receipt.DeclaredTotal == 0 {
		for _, item := range receipt.Items {
			receipt.DeclaredTotal += item.Amount()
		}
	}
	return &receipt
}
