package storefronttest

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	storefront "github.com/goliatone/go-storefront"
)

type user struct {
	ID           int64
	UUID         uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Roles        []string
}

func (u *user) displayName() string {
	return u.FirstName + " " + u.LastName
}

type cartItem struct {
	ID        int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

type cart struct {
	ID    int64
	Items []*cartItem
}

func (c *cart) find(productID int64) (int, *cartItem) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i, item
		}
	}
	return -1, nil
}

// CartItem is the wire shape of one cart line.
type CartItem struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"productId"`
	ProductName     string          `json:"productName"`
	ProductImageURL string          `json:"productImageUrl"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// CartResponse is the wire shape returned by every cart endpoint.
type CartResponse struct {
	CartID     int64           `json:"cartId"`
	CartItems  []CartItem      `json:"cartItems"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	TotalItems int             `json:"totalItems"`
}

// DefaultProducts is the catalog a new Server starts with.
func DefaultProducts() []storefront.Product {
	return []storefront.Product{
		{
			Name:          "Espresso Grinder",
			Description:   "Conical burr grinder with 40 settings",
			Price:         decimal.RequireFromString("129.99"),
			StockQuantity: 10,
			ImageURL:      "/img/grinder.png",
			CategoryName:  "Kitchen",
		},
		{
			Name:          "Pour Over Kettle",
			Description:   "Gooseneck kettle, 1L",
			Price:         decimal.RequireFromString("49.50"),
			StockQuantity: 25,
			ImageURL:      "/img/kettle.png",
			CategoryName:  "Kitchen",
		},
		{
			Name:          "Single Origin Beans",
			Description:   "Washed Ethiopian, 250g",
			Price:         decimal.RequireFromString("18.00"),
			StockQuantity: 3,
			ImageURL:      "/img/beans.png",
			CategoryName:  "Coffee",
		},
	}
}

// cartResponse renders c. Callers hold the server lock.
func (s *Server) cartResponse(c *cart) CartResponse {
	out := CartResponse{
		CartID:     c.ID,
		CartItems:  make([]CartItem, 0, len(c.Items)),
		GrandTotal: decimal.Zero,
	}
	for _, item := range c.Items {
		p := s.products[item.ProductID]
		subtotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		line := CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  subtotal,
		}
		if p != nil {
			line.ProductName = p.Name
			line.ProductImageURL = p.ImageURL
		}
		out.CartItems = append(out.CartItems, line)
		out.GrandTotal = out.GrandTotal.Add(subtotal)
	}
	out.TotalItems = len(out.CartItems)
	return out
}

// cartFor returns the cart of u, creating it on first use. Callers hold the
// server lock.
func (s *Server) cartFor(u *user) *cart {
	c, ok := s.carts[u.ID]
	if !ok {
		s.seq++
		c = &cart{ID: s.seq}
		s.carts[u.ID] = c
	}
	return c
}

// ordersFor returns the orders of u, newest first. Callers hold the lock.
func (s *Server) ordersFor(u *user) []storefront.Order {
	out := []storefront.Order{}
	for _, o := range s.orders {
		if o.UserID == u.ID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// refreshRating recomputes the product rating aggregate. Callers hold the lock.
func (s *Server) refreshRating(productID int64) {
	p := s.products[productID]
	if p == nil {
		return
	}
	total, count := 0, 0
	for _, r := range s.reviews {
		if r.ProductID == productID {
			total += r.Rating
			count++
		}
	}
	p.ReviewCount = count
	p.AverageRating = 0
	if count > 0 {
		p.AverageRating = float64(total) / float64(count)
	}
}

func timestamp(t time.Time) storefront.Timestamp {
	return storefront.Timestamp{Time: t.UTC()}
}
