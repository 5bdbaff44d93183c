package model

// WishlistEntry is one saved product.
type WishlistEntry struct {
	EntryID string     `json:"_id"`
	Product ProductRef `json:"product"`
}

// Wishlist is always server-authoritative. A nil *Wishlist means "not loaded".
type Wishlist struct {
	Entries []WishlistEntry `json:"items"`
}

// Contains reports membership by normalized product identifier.
func (w *Wishlist) Contains(productID string) bool {
	if w == nil {
		return false
	}
	for _, e := range w.Entries {
		if e.Product.ID() == productID {
			return true
		}
	}
	return false
}

// Count is the number of entries; zero when not loaded.
func (w *Wishlist) Count() int {
	if w == nil {
		return 0
	}
	return len(w.Entries)
}

// Clone returns a deep copy, preserving nil.
func (w *Wishlist) Clone() *Wishlist {
	if w == nil {
		return nil
	}
	entries := make([]WishlistEntry, len(w.Entries))
	copy(entries, w.Entries)
	return &Wishlist{Entries: entries}
}
