package fingerprint

import "skatestock/internal/model"

// Generate derives the stable identity key used for duplicate detection.
// Missing fields degrade to empty components; two events agreeing on
// source, id, title and price always produce the same key regardless of
// any other field (scrape timestamp included).
func Generate(ev model.RawEvent) string {
	id := ev.SourceProductID
	if id == "" {
		id = ev.ProductID
	}
	price := ev.SalePrice.Raw()
	if !ev.SalePrice.IsSet() {
		price = ev.OriginalPrice.Raw()
	}
	return ev.Source + ":" + id + ":" + ev.Title + ":" + price
}
