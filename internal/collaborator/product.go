package collaborator

import (
	"context"
	"net/url"
	"strconv"

	"composite/internal/composite/models"
)

// ProductClient reads products from the product service.
type ProductClient struct {
	*client
}

func NewProductClient(baseURL string, opts ...Option) (*ProductClient, error) {
	c, err := newClient("product", baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &ProductClient{client: c}, nil
}

// GetProduct fetches one product. delay (seconds) and faultPercent (0-100)
// are passed through to the product service for load and fault testing and
// are only sent when non-zero.
func (c *ProductClient) GetProduct(ctx context.Context, productID, delay, faultPercent int) (models.Product, error) {
	var p models.Product
	path := "/product/" + strconv.Itoa(productID)
	if err := c.getJSON(ctx, "getProduct", path, productQuery(delay, faultPercent), &p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func productQuery(delay, faultPercent int) url.Values {
	query := url.Values{}
	if delay > 0 {
		query.Set("delay", strconv.Itoa(delay))
	}
	if faultPercent > 0 {
		query.Set("faultPercent", strconv.Itoa(faultPercent))
	}
	return query
}
