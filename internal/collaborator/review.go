package collaborator

import (
	"context"
	"net/url"
	"strconv"

	"composite/internal/composite/models"
)

// ReviewClient lists reviews for a product.
type ReviewClient struct {
	*client
}

func NewReviewClient(baseURL string, opts ...Option) (*ReviewClient, error) {
	c, err := newClient("review", baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &ReviewClient{client: c}, nil
}

// ListReviews returns the product's reviews in service order.
func (c *ReviewClient) ListReviews(ctx context.Context, productID int) ([]models.Review, error) {
	query := url.Values{"productId": {strconv.Itoa(productID)}}
	var out []models.Review
	if err := c.getJSON(ctx, "listReviews", "/review", query, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Review{}
	}
	return out, nil
}
