package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"skatestock/internal/model"
)

// ErrInvalidEvent marks events missing required fields. Such events are
// dead-lettered, never handed downstream.
var ErrInvalidEvent = errors.New("invalid event")

// knownBrands is scanned in order; the first case-insensitive substring
// match against the title wins. The order is part of the contract:
// downstream analytics depend on the exact matches produced, so do not
// re-sort this list (e.g. longest-first).
var knownBrands = []string{
	"Baker",
	"Thrasher",
	"Independent",
	"Spitfire",
	"Vans",
	"Nike SB",
	"Adidas",
	"Converse",
	"Emerica",
	"eS",
	"Etnies",
	"Fallen",
	"Lakai",
	"New Balance",
	"DC Shoes",
	"Supreme",
	"Palace",
	"FTC",
	"HUF",
	"Stüssy",
}

// NowFunc is swapped in tests to pin NormalizedAt.
var NowFunc = time.Now

// Normalizer validates raw events and produces canonical product records.
type Normalizer struct {
	brands []string
}

func New() *Normalizer {
	return &Normalizer{brands: knownBrands}
}

// Validate reports whether ev carries the required fields (source, title).
func (n *Normalizer) Validate(ev model.RawEvent) bool {
	return ev.Source != "" && ev.Title != ""
}

// Normalize transforms ev into a NormalizedProduct. Malformed optional
// fields degrade to nil; only missing required fields fail, wrapping
// ErrInvalidEvent.
func (n *Normalizer) Normalize(ev model.RawEvent) (model.NormalizedProduct, error) {
	if !n.Validate(ev) {
		var missing []string
		if ev.Source == "" {
			missing = append(missing, "source")
		}
		if ev.Title == "" {
			missing = append(missing, "title")
		}
		return model.NormalizedProduct{}, fmt.Errorf("%w: missing %s", ErrInvalidEvent, strings.Join(missing, ", "))
	}

	originalPrice := priceOrNil(ev.OriginalPrice)
	salePrice := priceOrNil(ev.SalePrice)

	// Discount is always recomputed from the price fields, never trusted
	// from the raw event.
	var discount *float64
	if originalPrice != nil && salePrice != nil && *originalPrice > 0 {
		d := round2((*originalPrice - *salePrice) / *originalPrice * 100)
		discount = &d
	}

	category := ev.Category
	if category == "" {
		category = "unknown"
	}
	currency := ev.Currency
	if currency == "" {
		currency = "USD"
	}
	availability := ev.Availability
	if availability == "" {
		availability = "unknown"
	}
	confidence := 1.0
	if ev.ConfidenceScore != nil {
		confidence = *ev.ConfidenceScore
	}

	return model.NormalizedProduct{
		ProductID:          ev.Source + ":" + ev.SourceProductID,
		SourceProductID:    ev.SourceProductID,
		Source:             ev.Source,
		Title:              ev.Title,
		Brand:              n.extractBrand(ev.Title),
		Category:           category,
		OriginalPrice:      originalPrice,
		SalePrice:          salePrice,
		DiscountPercentage: discount,
		Currency:           currency,
		Availability:       availability,
		ImageURL:           ev.ImageURL,
		ProductURL:         ev.ProductURL,
		StockQuantity:      ev.StockQuantity,
		Color:              ev.Color,
		Size:               ev.Size,
		ConfidenceScore:    confidence,
		NormalizedAt:       NowFunc().UTC(),
	}, nil
}

func (n *Normalizer) extractBrand(title string) *string {
	upper := strings.ToUpper(title)
	for _, brand := range n.brands {
		if strings.Contains(upper, strings.ToUpper(brand)) {
			b := brand
			return &b
		}
	}
	return nil
}

func priceOrNil(p model.PriceValue) *float64 {
	f, ok := p.Float()
	if !ok {
		return nil
	}
	return &f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
