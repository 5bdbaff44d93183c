package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductSummary carries enough product data to render a line or entry
// without a secondary fetch.
type ProductSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Price Money  `json:"price"`
	Image string `json:"image,omitempty"`
	Stock int    `json:"stock"`
	// Seller is the vendor storefront the product belongs to.
	Seller string `json:"seller,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id", and an "images" array when no
// single "image" is present.
func (p *ProductSummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID string          `json:"_id"`
		ID      string          `json:"id"`
		Name    string          `json:"name"`
		Price   Money           `json:"price"`
		Image   string          `json:"image"`
		Images  json.RawMessage `json:"images"`
		Stock   int             `json:"stock"`
		Seller  json.RawMessage `json:"seller"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = ProductSummary{
		ID:    raw.MongoID,
		Name:  raw.Name,
		Price: raw.Price,
		Image: raw.Image,
		Stock: raw.Stock,
	}
	if p.ID == "" {
		p.ID = raw.ID
	}
	if p.Image == "" {
		p.Image = firstImage(raw.Images)
	}
	if len(raw.Seller) > 0 {
		// Seller is either a bare id or a populated vendor document.
		var ref ProductRef
		if err := json.Unmarshal(raw.Seller, &ref); err == nil {
			p.Seller = ref.ID()
		}
	}
	return nil
}

// firstImage extracts the first URL from ["url", ...] or [{"url": ...}, ...].
func firstImage(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err == nil && len(urls) > 0 {
		return urls[0]
	}
	var objs []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &objs); err == nil && len(objs) > 0 {
		return objs[0].URL
	}
	return ""
}

// ProductRef is a product reference as the backend sends it: either a bare
// identifier or an embedded product document.
type ProductRef struct {
	id       string
	embedded *ProductSummary
}

// Reference builds a bare-id ProductRef.
func Reference(id string) ProductRef {
	return ProductRef{id: id}
}

// Embedded builds a ProductRef carrying a full product summary.
func Embedded(p ProductSummary) ProductRef {
	return ProductRef{id: p.ID, embedded: &p}
}

// ID is the normalized product identifier for either shape.
func (r ProductRef) ID() string {
	if r.embedded != nil && r.embedded.ID != "" {
		return r.embedded.ID
	}
	return r.id
}

// Summary returns the embedded product, if any.
func (r ProductRef) Summary() (ProductSummary, bool) {
	if r.embedded == nil {
		return ProductSummary{}, false
	}
	return *r.embedded, true
}

// IsZero reports whether the reference carries no identifier and no document.
func (r ProductRef) IsZero() bool {
	return r.id == "" && r.embedded == nil
}

// MarshalJSON writes the embedded document when present, else the bare id.
func (r ProductRef) MarshalJSON() ([]byte, error) {
	if r.embedded != nil {
		return json.Marshal(r.embedded)
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON decodes a string into Reference and an object into Embedded.
func (r *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = ProductRef{}
	case data[0] == '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Reference(id)
	case data[0] == '{':
		var p ProductSummary
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*r = Embedded(p)
	default:
		return fmt.Errorf("product reference must be a string or object, got %s", data)
	}
	return nil
}

// ProductQuery filters catalog listings.
type ProductQuery struct {
	Page     int
	Limit    int
	Category string
	Sort     string
	Search   string
}

// ProductPage is one page of a catalog listing.
type ProductPage struct {
	Products []ProductSummary `json:"products"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
	Total    int              `json:"total"`
}
