package storefronttest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	storefront "github.com/goliatone/go-storefront"
)

func (s *Server) routes() {
	api := s.app.Group(APIPrefix, s.recorder)

	api.Post("/auth/register", s.register)
	api.Post("/auth/authenticate", s.authenticate)

	api.Get("/products", s.listProducts)
	api.Get("/products/:id", s.getProduct)
	api.Get("/reviews/product/:id", s.listReviews)
	api.Post("/reviews", s.authenticated, s.submitReview)

	api.Get("/cart", s.authenticated, s.getCart)
	api.Post("/cart/add", s.authenticated, s.addToCart)
	api.Put("/cart/update", s.authenticated, s.updateCart)
	api.Delete("/cart/remove/:id", s.authenticated, s.removeFromCart)

	api.Post("/orders", s.authenticated, s.createOrder)
	api.Get("/orders", s.authenticated, s.listOrders)
	api.Get("/orders/:id", s.authenticated, s.getOrder)
}

func (s *Server) register(c *fiber.Ctx) error {
	var req storefront.RegisterPayload
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "first name, last name and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.createUser(req.FirstName, req.LastName, req.Email, req.Password)
	if errors.Is(err, errEmailTaken) {
		return fiber.NewError(fiber.StatusConflict, "Email already registered")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return s.issue(c, u)
}

func (s *Server) authenticate(c *fiber.Ctx) error {
	var req storefront.Credentials
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok || comparePassword(req.Password, u.PasswordHash) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}
	return s.issue(c, u)
}

// issue signs a token for u. Callers hold the lock.
func (s *Server) issue(c *fiber.Ctx, u *user) error {
	token, jti, err := s.signToken(u, s.now(), s.ttl)
	if err != nil {
		return err
	}
	s.issued = append(s.issued, jti)
	return c.JSON(fiber.Map{"token": token})
}

func (s *Server) listProducts(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]storefront.Product, 0, len(s.products))
	for id := int64(1); id <= s.seq; id++ {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return c.JSON(out)
}

func (s *Server) getProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[int64(id)]
	if !ok {
		return productNotFound(int64(id))
	}
	return c.JSON(p)
}

func (s *Server) listReviews(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[int64(id)]; !ok {
		return productNotFound(int64(id))
	}

	out := []storefront.Review{}
	for _, r := range s.reviews {
		if r.ProductID == int64(id) {
			out = append(out, *r)
		}
	}
	return c.JSON(out)
}

func (s *Server) submitReview(c *fiber.Ctx) error {
	var req storefront.ReviewPayload
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return fiber.NewError(fiber.StatusBadRequest, "rating must be between 1 and 5")
	}

	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[req.ProductID]
	if !ok {
		return productNotFound(req.ProductID)
	}
	for _, r := range s.reviews {
		if r.ProductID == p.ID && r.UserID == u.ID {
			return fiber.NewError(fiber.StatusConflict, "you have already reviewed this product")
		}
	}

	s.seq++
	review := &storefront.Review{
		ID:          s.seq,
		ProductID:   p.ID,
		ProductName: p.Name,
		UserID:      u.ID,
		UserName:    u.displayName(),
		Rating:      req.Rating,
		Comment:     req.Comment,
		ReviewDate:  timestamp(s.now()),
	}
	s.reviews = append(s.reviews, review)
	s.refreshRating(p.ID)

	return c.Status(fiber.StatusCreated).JSON(review)
}

type cartRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (s *Server) getCart(c *fiber.Ctx) error {
	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	return c.JSON(s.cartResponse(s.cartFor(u)))
}

func (s *Server) addToCart(c *fiber.Ctx) error {
	var req cartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Quantity < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be at least 1")
	}

	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[req.ProductID]
	if !ok {
		return productNotFound(req.ProductID)
	}

	crt := s.cartFor(u)
	_, item := crt.find(p.ID)
	current := 0
	if item != nil {
		current = item.Quantity
	}
	if current+req.Quantity > p.StockQuantity {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf(
			"Cannot add %d more. Only %d available for %s", req.Quantity, p.StockQuantity-current, p.Name))
	}

	if item != nil {
		item.Quantity += req.Quantity
	} else {
		s.seq++
		crt.Items = append(crt.Items, &cartItem{
			ID:        s.seq,
			ProductID: p.ID,
			Quantity:  req.Quantity,
			Price:     p.Price,
		})
	}
	return c.JSON(s.cartResponse(crt))
}

func (s *Server) updateCart(c *fiber.Ctx) error {
	var req cartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[req.ProductID]
	if !ok {
		return productNotFound(req.ProductID)
	}

	crt := s.cartFor(u)
	idx, item := crt.find(p.ID)
	if item == nil {
		return fiber.NewError(fiber.StatusNotFound, "Product not in cart")
	}

	if req.Quantity <= 0 {
		crt.Items = append(crt.Items[:idx], crt.Items[idx+1:]...)
		return c.JSON(s.cartResponse(crt))
	}

	if req.Quantity > p.StockQuantity {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf(
			"Not enough stock for product: %s. Available: %d", p.Name, p.StockQuantity))
	}

	item.Quantity = req.Quantity
	return c.JSON(s.cartResponse(crt))
}

func (s *Server) removeFromCart(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[int64(id)]; !ok {
		return productNotFound(int64(id))
	}

	crt := s.cartFor(u)
	idx, item := crt.find(int64(id))
	if item == nil {
		return fiber.NewError(fiber.StatusNotFound, "Product not in cart")
	}
	crt.Items = append(crt.Items[:idx], crt.Items[idx+1:]...)
	return c.JSON(s.cartResponse(crt))
}

func (s *Server) createOrder(c *fiber.Ctx) error {
	var req storefront.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "shipping address is required")
	}

	u := currentUser(c)
	key := c.Get("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if orderID, seen := s.idempotency[fmt.Sprintf("%d:%s", u.ID, key)]; seen {
			return c.Status(fiber.StatusOK).JSON(s.orders[orderID])
		}
	}

	crt := s.cartFor(u)
	if len(crt.Items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot place order for an empty cart.")
	}

	for _, item := range crt.Items {
		p := s.products[item.ProductID]
		if p == nil || p.StockQuantity < item.Quantity {
			name := fmt.Sprintf("#%d", item.ProductID)
			if p != nil {
				name = p.Name
			}
			return fiber.NewError(fiber.StatusBadRequest, "Insufficient stock for product: "+name)
		}
	}

	s.seq++
	order := &storefront.Order{
		ID:              s.seq,
		UserID:          u.ID,
		UserName:        u.displayName(),
		OrderDate:       timestamp(s.now()),
		TotalAmount:     decimal.Zero,
		Status:          "PENDING",
		PaymentStatus:   "PENDING",
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
	}

	for _, item := range crt.Items {
		p := s.products[item.ProductID]
		p.StockQuantity -= item.Quantity
		s.seq++
		subtotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.OrderItems = append(order.OrderItems, storefront.OrderItem{
			ID:              s.seq,
			ProductID:       p.ID,
			ProductName:     p.Name,
			ProductImageURL: p.ImageURL,
			Price:           item.Price,
			Quantity:        item.Quantity,
			Subtotal:        subtotal,
		})
		order.TotalAmount = order.TotalAmount.Add(subtotal)
	}

	crt.Items = nil
	s.orders[order.ID] = order
	if key != "" {
		s.idempotency[fmt.Sprintf("%d:%s", u.ID, key)] = order.ID
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (s *Server) listOrders(c *fiber.Ctx) error {
	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	return c.JSON(s.ordersFor(u))
}

func (s *Server) getOrder(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[int64(id)]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Order not found with ID: %d", id))
	}
	if order.UserID != u.ID {
		return fiber.NewError(fiber.StatusForbidden, "Unauthorized access to order.")
	}
	return c.JSON(order)
}

func productNotFound(id int64) error {
	return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Product not found with ID: %d", id))
}
