package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RawEvent is a scraped product listing as it arrives off the wire.
// Only Source and Title are required; everything else is best-effort.
// Unknown fields in the payload are ignored for forward compatibility.
type RawEvent struct {
	Source          string     `json:"source"`
	SourceProductID string     `json:"source_product_id,omitempty"`
	ProductID       string     `json:"product_id,omitempty"`
	Title           string     `json:"title"`
	Category        string     `json:"category,omitempty"`
	OriginalPrice   PriceValue `json:"original_price,omitempty"`
	SalePrice       PriceValue `json:"sale_price,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Availability    string     `json:"availability,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	ProductURL      string     `json:"product_url,omitempty"`
	StockQuantity   *int64     `json:"stock_quantity,omitempty"`
	Color           string     `json:"color,omitempty"`
	Size            string     `json:"size,omitempty"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty"`
	ScrapedAt       string     `json:"scraped_at,omitempty"`
}

// PriceValue carries a price field that scrapers send as either a JSON
// number or a string (possibly with currency symbols). The raw wire token
// is preserved so identity fingerprints see exactly what was submitted.
type PriceValue struct {
	raw string
	set bool
}

// Price constructs a set PriceValue from a raw token. Mostly for tests
// and the demo generator.
func Price(raw string) PriceValue {
	return PriceValue{raw: raw, set: true}
}

func (p PriceValue) IsSet() bool { return p.set }

// Raw returns the wire token as submitted, or "" when absent.
func (p PriceValue) Raw() string { return p.raw }

// Float parses the price, stripping "$", "," and surrounding whitespace.
// Unparsable or absent values report ok=false; that is expected input,
// not an error.
func (p PriceValue) Float() (float64, bool) {
	if !p.set {
		return 0, false
	}
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(p.raw)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (p *PriceValue) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*p = PriceValue{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PriceValue{raw: s, set: true}
		return nil
	}
	// Number: keep the literal so "45.00" and "45.0" stay distinct tokens.
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = PriceValue{raw: n.String(), set: true}
	return nil
}

func (p PriceValue) MarshalJSON() ([]byte, error) {
	if !p.set {
		return []byte("null"), nil
	}
	return json.Marshal(p.raw)
}

// NormalizedProduct is the canonical output record handed to downstream
// consumers. Nullable fields are pointers so "absent" survives JSON
// round-trips as null rather than zero.
type NormalizedProduct struct {
	ProductID          string    `json:"product_id"`
	SourceProductID    string    `json:"source_product_id,omitempty"`
	Source             string    `json:"source"`
	Title              string    `json:"title"`
	Brand              *string   `json:"brand"`
	Category           string    `json:"category"`
	OriginalPrice      *float64  `json:"original_price"`
	SalePrice          *float64  `json:"sale_price"`
	DiscountPercentage *float64  `json:"discount_percentage"`
	Currency           string    `json:"currency"`
	Availability       string    `json:"availability"`
	ImageURL           string    `json:"image_url,omitempty"`
	ProductURL         string    `json:"product_url,omitempty"`
	StockQuantity      *int64    `json:"stock_quantity,omitempty"`
	Color              string    `json:"color,omitempty"`
	Size               string    `json:"size,omitempty"`
	ConfidenceScore    float64   `json:"confidence_score"`
	NormalizedAt       time.Time `json:"normalized_at"`
}

// DeadLetterEvent preserves an unprocessable event together with its error
// context for out-of-band inspection or replay. Immutable once written.
type DeadLetterEvent struct {
	ID              string          `json:"id"`
	OriginalEvent   json.RawMessage `json:"original_event"`
	ErrorMessage    string          `json:"error_message"`
	ProcessingStage string          `json:"processing_stage"`
	FailedAt        time.Time       `json:"failed_at"`
	RetryCount      int             `json:"retry_count"`
	Source          string          `json:"source,omitempty"`
}

// Processing stages recorded on dead-letter events.
const (
	StageValidation       = "validation"
	StageProcessing       = "processing"
	StageDedupUnavailable = "dedup_unavailable"
)
