package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"storefront/internal/model"
)

// unwrap peels the response envelope: data first, then the named key.
// Mirrors the backend's habit of answering either {data:{cart:{...}}},
// {cart:{...}} or {data:{...cart fields...}}. Returns nil when the body is
// empty or JSON null.
func unwrap(body []byte, key string) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}

	inner := json.RawMessage(body)
	var env envelope
	if json.Unmarshal(body, &env) == nil && !isNull(env.Data) {
		inner = env.Data
	}

	if key != "" {
		var fields map[string]json.RawMessage
		if json.Unmarshal(inner, &fields) == nil {
			if v, ok := fields[key]; ok && !isNull(v) {
				return v
			}
		}
	}
	return inner
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeCart normalizes a cart payload. It returns nil (no error) when the
// payload does not carry an items array: the backend acknowledged without
// sending the cart.
func decodeCart(raw json.RawMessage, taxBasisPoints int) (*model.Cart, error) {
	if isNull(raw) {
		return nil, nil
	}

	var w wireCart
	if err := json.Unmarshal(raw, &w); err != nil {
		// Acks such as {"message":"added"} decode fine; anything that
		// doesn't is malformed.
		return nil, fmt.Errorf("parsing cart: %w", err)
	}
	if w.Items == nil {
		return nil, nil
	}

	cart := toCart(w, taxBasisPoints)
	return &cart, nil
}

// toCart applies line normalization and the totals fallback: server values
// win when present, otherwise they are recomputed from the lines.
func toCart(w wireCart, taxBasisPoints int) model.Cart {
	cart := model.EmptyCart()
	for _, item := range *w.Items {
		line, ok := toLine(item)
		if !ok {
			continue
		}
		cart.Lines = append(cart.Lines, line)
	}

	cart.Recalculate(taxBasisPoints)
	if w.Subtotal != nil {
		cart.Subtotal = *w.Subtotal
		cart.Tax = model.TaxOn(cart.Subtotal, taxBasisPoints)
		cart.Total = cart.Subtotal + cart.Tax
	}
	if w.Tax != nil {
		cart.Tax = *w.Tax
		cart.Total = cart.Subtotal + cart.Tax
	}
	if w.Total != nil {
		cart.Total = *w.Total
	}
	return cart
}

// toLine returns false for items that can't be addressed (no product id)
// or that carry a non-positive quantity.
func toLine(item wireCartItem) (model.CartLine, bool) {
	summary, embedded := item.Product.Summary()

	productID := ""
	switch {
	case embedded && summary.ID != "":
		productID = summary.ID
	case item.ProductID != "":
		productID = item.ProductID
	default:
		productID = item.Product.ID()
	}
	if productID == "" {
		return model.CartLine{}, false
	}
	summary.ID = productID

	quantity := 1
	if item.Quantity != nil {
		quantity = *item.Quantity
	}
	if quantity < 1 {
		return model.CartLine{}, false
	}

	price := summary.Price
	if item.Price != nil {
		price = *item.Price
	}

	lineID := item.ID
	if lineID == "" {
		lineID = model.SyntheticLineID(productID)
	}

	return model.CartLine{
		LineID:    lineID,
		Product:   summary,
		UnitPrice: price,
		Quantity:  quantity,
	}, true
}

// decodeWishlist accepts {items:[...]} or a bare array of entries.
func decodeWishlist(raw json.RawMessage) (*model.Wishlist, error) {
	if isNull(raw) {
		return nil, nil
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		var entries []model.WishlistEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("parsing wishlist: %w", err)
		}
		return &model.Wishlist{Entries: dropEmptyEntries(entries)}, nil
	}

	var w wireWishlist
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parsing wishlist: %w", err)
	}
	if w.Items == nil {
		return nil, nil
	}
	return &model.Wishlist{Entries: dropEmptyEntries(*w.Items)}, nil
}

func dropEmptyEntries(entries []model.WishlistEntry) []model.WishlistEntry {
	out := make([]model.WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Product.ID() == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// toSyncItems converts guest lines to the /cart/sync request shape.
func toSyncItems(lines []model.CartLine) []wireSyncItem {
	items := make([]wireSyncItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, wireSyncItem{
			ProductID: l.ProductID(),
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		})
	}
	return items
}

func toProductPage(w wireProductPage) *model.ProductPage {
	page := &model.ProductPage{
		Products: w.Products,
		Page:     w.Page,
		Pages:    w.Pages,
		Total:    w.Total,
	}
	if page.Products == nil {
		page.Products = []model.ProductSummary{}
	}
	if w.Pagination != nil {
		page.Page = w.Pagination.Page
		page.Pages = w.Pagination.Pages
		page.Total = w.Pagination.Total
	}
	if page.Page == 0 {
		page.Page = 1
	}
	if page.Total == 0 {
		page.Total = len(page.Products)
	}
	return page
}
