package storefront

import (
	"github.com/shopspring/decimal"
)

// ProductSnapshot is the product data the server embeds in a cart line.
type ProductSnapshot struct {
	Name     string
	Price    decimal.Decimal
	ImageURL string
}

// CartLine is one product in the cart. Quantity is always positive.
type CartLine struct {
	ProductID int64
	Quantity  int
	Product   ProductSnapshot
}

// Subtotal returns quantity times unit price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an immutable snapshot of the cart mirror. Totals are computed on
// every read and never stored.
type Cart struct {
	id    int64
	lines []CartLine
}

// NewCart builds a cart from server lines. Lines with a non-positive quantity
// are dropped and a repeated product keeps its last occurrence, in the
// position of its first.
func NewCart(id int64, lines ...CartLine) Cart {
	index := make(map[int64]int, len(lines))
	out := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			out[i] = line
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return Cart{id: id, lines: out}
}

// ID is the server cart id, 0 for an empty mirror.
func (c Cart) ID() int64 {
	return c.id
}

// Lines returns a copy of the cart lines in server order.
func (c Cart) Lines() []CartLine {
	return append([]CartLine(nil), c.lines...)
}

// Line returns the line for productID.
func (c Cart) Line(productID int64) (CartLine, bool) {
	for _, l := range c.lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Len returns the number of distinct products.
func (c Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// TotalItems is the sum of all quantities.
func (c Cart) TotalItems() int {
	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice is the sum of quantity times unit price.
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

type cartItemDTO struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"productId"`
	ProductName     string          `json:"productName"`
	ProductImageURL string          `json:"productImageUrl"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// cartDTO is the cart representation returned by every cart endpoint.
type cartDTO struct {
	CartID     int64           `json:"cartId"`
	CartItems  []cartItemDTO   `json:"cartItems"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	TotalItems int             `json:"totalItems"`
}

func (d cartDTO) toCart() Cart {
	lines := make([]CartLine, 0, len(d.CartItems))
	for _, item := range d.CartItems {
		lines = append(lines, CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product: ProductSnapshot{
				Name:     item.ProductName,
				Price:    item.Price,
				ImageURL: item.ProductImageURL,
			},
		})
	}
	return NewCart(d.CartID, lines...)
}
