package model

import (
	"encoding/json"
	"testing"
)

func TestRawEvent_DecodeMixedPriceTypes(t *testing.T) {
	payload := []byte(`{
		"source": "seasons_skateshop",
		"source_product_id": "123",
		"title": "Indy Stage 11",
		"sale_price": "45.00",
		"original_price": 55.00,
		"some_future_field": {"ignored": true}
	}`)
	var ev RawEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.SalePrice.Raw() != "45.00" {
		t.Fatalf("string price raw token lost: %q", ev.SalePrice.Raw())
	}
	// Number literal preserved as written on the wire.
	if ev.OriginalPrice.Raw() != "55.00" {
		t.Fatalf("number price raw token: %q", ev.OriginalPrice.Raw())
	}
	if f, ok := ev.SalePrice.Float(); !ok || f != 45.0 {
		t.Fatalf("sale price parse: %v %v", f, ok)
	}
}

func TestPriceValue_NullAndAbsent(t *testing.T) {
	var ev RawEvent
	if err := json.Unmarshal([]byte(`{"source":"s","title":"t","sale_price":null}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.SalePrice.IsSet() || ev.OriginalPrice.IsSet() {
		t.Fatalf("null/absent prices should be unset")
	}
	if _, ok := ev.SalePrice.Float(); ok {
		t.Fatalf("unset price should not parse")
	}
}

func TestPriceValue_FloatParsing(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"45.00", 45.0, true},
		{"$1,299.99", 1299.99, true},
		{" $55 ", 55.0, true},
		{"N/A", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := Price(c.raw).Float()
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("Float(%q) = %v,%v; want %v,%v", c.raw, got, ok, c.want, c.ok)
		}
	}
}
