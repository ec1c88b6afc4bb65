package collaborator

import (
	"context"
	"net/url"
	"strconv"

	"composite/internal/composite/models"
)

// RecommendationClient lists recommendations for a product.
type RecommendationClient struct {
	*client
}

func NewRecommendationClient(baseURL string, opts ...Option) (*RecommendationClient, error) {
	c, err := newClient("recommendation", baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &RecommendationClient{client: c}, nil
}

// ListRecommendations returns the product's recommendations in service
// order. An empty answer yields an empty, non-nil slice.
func (c *RecommendationClient) ListRecommendations(ctx context.Context, productID int) ([]models.Recommendation, error) {
	query := url.Values{"productId": {strconv.Itoa(productID)}}
	var out []models.Recommendation
	if err := c.getJSON(ctx, "listRecommendations", "/recommendation", query, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Recommendation{}
	}
	return out, nil
}
