package storefront

import (
	"context"
)

// Catalog reads products and reviews. Browsing is public; submitting a
// review needs an authenticated session.
type Catalog struct {
	api     CatalogAPI
	session SessionSource
	logger  Logger
}

// NewCatalog returns a Catalog backed by api.
func NewCatalog(api CatalogAPI, session SessionSource, logger Logger) *Catalog {
	return &Catalog{
		api:     api,
		session: session,
		logger:  normalizeLogger(logger),
	}
}

func (c *Catalog) ListProducts(ctx context.Context) ([]Product, error) {
	return c.api.ListProducts(ctx)
}

func (c *Catalog) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	return c.api.GetProduct(ctx, productID)
}

func (c *Catalog) ListReviews(ctx context.Context, productID int64) ([]Review, error) {
	return c.api.ListReviews(ctx, productID)
}

// SubmitReview validates the payload locally before posting it.
func (c *Catalog) SubmitReview(ctx context.Context, payload ReviewPayload) (*Review, error) {
	if !c.session.Session().IsAuthenticated() {
		return nil, failure(ErrNotAuthenticated, "you must be logged in to review products", nil, nil)
	}
	if err := validate(payload); err != nil {
		return nil, err
	}

	review, err := c.api.SubmitReview(ctx, payload)
	if err != nil {
		c.logger.Info("review rejected", "product_id", payload.ProductID, "error", err)
		return nil, err
	}
	return review, nil
}
