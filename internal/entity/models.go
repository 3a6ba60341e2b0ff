package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaperSize is the sheet format of a print job.
type PaperSize string

const (
	PaperA4     PaperSize = "A4"
	PaperA3     PaperSize = "A3"
	PaperLetter PaperSize = "Letter"
	PaperLegal  PaperSize = "Legal"
)

// Valid reports whether the paper size is one the shops can price.
func (p PaperSize) Valid() bool {
	switch p {
	case PaperA4, PaperA3, PaperLetter, PaperLegal:
		return true
	}
	return false
}

// ColorMode is the ink mode of a print job. Monochrome is stored as "bw".
type ColorMode string

const (
	ColorModeBW    ColorMode = "bw"
	ColorModeColor ColorMode = "color"
)

func (c ColorMode) Valid() bool {
	return c == ColorModeBW || c == ColorModeColor
}

// Label is the human readable name used in messages and emails.
func (c ColorMode) Label() string {
	if c == ColorModeBW {
		return "Black & White"
	}
	return "Color"
}

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus is independent of OrderStatus.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// PrintSpec describes what the customer wants printed.
type PrintSpec struct {
	PaperSize   PaperSize `json:"paper_size"`
	ColorMode   ColorMode `json:"color_mode"`
	Copies      int       `json:"copies"`
	PageCount   int       `json:"page_count"`
	DoubleSided bool      `json:"double_sided"`
	Stapling    bool      `json:"stapling"`
}

// Validate checks the enumerations and the positive counts.
func (s PrintSpec) Validate() error {
	if !s.PaperSize.Valid() {
		return fmt.Errorf("%w: unknown paper size %q", ErrValidation, s.PaperSize)
	}
	if !s.ColorMode.Valid() {
		return fmt.Errorf("%w: unknown color mode %q", ErrValidation, s.ColorMode)
	}
	if s.Copies < 1 {
		return fmt.Errorf("%w: copies must be at least 1", ErrValidation)
	}
	if s.PageCount < 1 {
		return fmt.Errorf("%w: page count must be at least 1", ErrValidation)
	}
	return nil
}

// Order represents a customer print job.
type Order struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customer_id"`
	ShopID        string              `json:"shop_id"`
	FilePath      string              `json:"file_path"`
	Spec          PrintSpec           `json:"specifications"`
	PricePerPage  decimal.NullDecimal `json:"price_per_page"`
	Price         decimal.Decimal     `json:"price"`
	Status        OrderStatus         `json:"status"`
	PaymentStatus PaymentStatus       `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`

	// Filled by shop listings from the customer's profile.
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// Shop is a print shop. The core only reads it.
type Shop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	OwnerID   string    `json:"owner_id"`
	UPIID     string    `json:"upi_id,omitempty"`
	Location  *Location `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is a point picked on the map.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PricingEntry is one row of a shop's price list.
type PricingEntry struct {
	ID           string          `json:"id,omitempty"`
	ShopID       string          `json:"shop_id"`
	PaperSize    PaperSize       `json:"paper_size"`
	ColorMode    ColorMode       `json:"color_mode"`
	PricePerPage decimal.Decimal `json:"price_per_page"`
}

// PricingKey identifies a (paper size, color mode) configuration.
type PricingKey struct {
	PaperSize PaperSize
	ColorMode ColorMode
}

func (e PricingEntry) Key() PricingKey {
	return PricingKey{PaperSize: e.PaperSize, ColorMode: e.ColorMode}
}

// --- Commands ---

// PlaceOrder is a command to create a new print order. The price per page
// is always resolved from the shop's pricing, never taken from the caller.
type PlaceOrder struct {
	CustomerID string    `json:"customer_id"`
	ShopID     string    `json:"shop_id"`
	FilePath   string    `json:"file_path"`
	Spec       PrintSpec `json:"specifications"`
}
