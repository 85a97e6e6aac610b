package core

import "github.com/shopspring/decimal"

// CartLine is one product in the cart. Quantity is always >= 1.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Note      string          `json:"note,omitempty"`
}

// Subtotal returns UnitPrice * Quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered list of lines with unique product ids.
type Cart []CartLine

// Clone returns an independent copy of the cart.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Index returns the position of productID or -1.
func (c Cart) Index(productID string) int {
	for i, l := range c {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Contains reports whether productID has a line in the cart.
func (c Cart) Contains(productID string) bool { return c.Index(productID) >= 0 }

// ProductIDs returns the ids of all lines in cart order.
func (c Cart) ProductIDs() []string {
	ids := make([]string, len(c))
	for i, l := range c {
		ids[i] = l.ProductID
	}
	return ids
}

// Upsert adds line to the cart, merging the quantity into an existing line
// for the same product. Quantities below one are treated as one. A non-empty
// note replaces the stored note.
func (c *Cart) Upsert(line CartLine) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	if i := c.Index(line.ProductID); i >= 0 {
		(*c)[i].Quantity += line.Quantity
		if line.Note != "" {
			(*c)[i].Note = line.Note
		}
		return
	}
	*c = append(*c, line)
}

// Remove decrements the line quantity by qty and deletes the line when it
// reaches zero. qty <= 0 removes the whole line. It reports whether the
// product was present.
func (c *Cart) Remove(productID string, qty int) bool {
	i := c.Index(productID)
	if i < 0 {
		return false
	}
	if qty <= 0 || (*c)[i].Quantity <= qty {
		*c = append((*c)[:i], (*c)[i+1:]...)
		return true
	}
	(*c)[i].Quantity -= qty
	return true
}

// SetQuantity overwrites the quantity of an existing line; qty <= 0 deletes
// it. It reports whether the product was present.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.Index(productID)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		*c = append((*c)[:i], (*c)[i+1:]...)
		return true
	}
	(*c)[i].Quantity = qty
	return true
}

// SetNote replaces the note of an existing line.
func (c *Cart) SetNote(productID, note string) bool {
	i := c.Index(productID)
	if i < 0 {
		return false
	}
	(*c)[i].Note = note
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() { *c = Cart{} }

// Total returns the sum of all line subtotals.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Items returns the total number of units in the cart.
func (c Cart) Items() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}
