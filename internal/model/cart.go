package model

import "github.com/google/uuid"

// lineNamespace seeds synthetic line IDs so the same product always maps to
// the same LineID across refetches.
var lineNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e39-9a1f-3c8d2e7b6a40")

// SyntheticLineID derives a stable line identifier for a product when the
// backend does not supply one.
func SyntheticLineID(productID string) string {
	return uuid.NewSHA1(lineNamespace, []byte(productID)).String()
}

// CartLine is one product in a cart. Quantity is always ≥ 1; a line that
// would drop to zero is removed instead.
type CartLine struct {
	LineID    string         `json:"_id"`
	Product   ProductSummary `json:"product"`
	UnitPrice Money          `json:"price"`
	Quantity  int            `json:"quantity"`
}

// ProductID is a shorthand for the line's product identifier.
func (l CartLine) ProductID() string {
	return l.Product.ID
}

// Cart is the client view of a cart, guest or server.
type Cart struct {
	Lines    []CartLine `json:"items"`
	Subtotal Money      `json:"subtotal"`
	Tax      Money      `json:"tax"`
	Total    Money      `json:"total"`
}

// EmptyCart returns a cart with no lines and zero totals.
func EmptyCart() Cart {
	return Cart{Lines: []CartLine{}}
}

// Recalculate recomputes subtotal, tax and total from the lines.
func (c *Cart) Recalculate(taxBasisPoints int) {
	var subtotal Money
	for _, l := range c.Lines {
		subtotal += l.UnitPrice.Mul(l.Quantity)
	}
	c.Subtotal = subtotal
	c.Tax = TaxOn(subtotal, taxBasisPoints)
	c.Total = c.Subtotal + c.Tax
}

// Clone returns a deep copy safe to hand to callers.
func (c Cart) Clone() Cart {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	c.Lines = lines
	return c
}

// Find returns the index of the line for productID, or -1.
func (c Cart) Find(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID() == productID {
			return i
		}
	}
	return -1
}

// ItemCount is the total quantity across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// WithAdded returns a copy with quantity added to productID's line, or a new
// line appended at the product's price.
func (c Cart) WithAdded(p ProductSummary, quantity, taxBasisPoints int) Cart {
	out := c.Clone()
	if i := out.Find(p.ID); i >= 0 {
		out.Lines[i].Quantity += quantity
	} else {
		out.Lines = append(out.Lines, CartLine{
			LineID:    SyntheticLineID(p.ID),
			Product:   p,
			UnitPrice: p.Price,
			Quantity:  quantity,
		})
	}
	out.Recalculate(taxBasisPoints)
	return out
}

// WithQuantity returns a copy with productID's line set to quantity.
// A quantity below 1 removes the line.
func (c Cart) WithQuantity(productID string, quantity, taxBasisPoints int) Cart {
	if quantity < 1 {
		return c.Without(productID, taxBasisPoints)
	}
	out := c.Clone()
	if i := out.Find(productID); i >= 0 {
		out.Lines[i].Quantity = quantity
	}
	out.Recalculate(taxBasisPoints)
	return out
}

// Without returns a copy with productID's line dropped.
func (c Cart) Without(productID string, taxBasisPoints int) Cart {
	out := Cart{Lines: make([]CartLine, 0, len(c.Lines))}
	for _, l := range c.Lines {
		if l.ProductID() != productID {
			out.Lines = append(out.Lines, l)
		}
	}
	out.Recalculate(taxBasisPoints)
	return out
}
