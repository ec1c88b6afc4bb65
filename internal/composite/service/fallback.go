package service

import (
	"context"
	"errors"

	"composite/internal/composite/models"
	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/sentinel"
)

// FallbackFailingProductID is reserved for exercising the fallback path: the
// fallback itself reports it as not found.
const FallbackFailingProductID = 13

// productFallback serves the last cached product for the id, or a marked
// placeholder when nothing is cached.
func (s *Service) productFallback(ctx context.Context, req productRequest, cause error) (models.Product, error) {
	if req.ProductID == FallbackFailingProductID {
		return models.Product{}, dErrors.Wrap(cause, dErrors.CodeNotFound,
			"Product Id: 13 not found in fallback cache!")
	}

	if s.cache != nil {
		p, err := s.cache.Get(ctx, req.ProductID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "product cache unavailable", "product_id", req.ProductID, "error", err)
		}
	}
	return models.FallbackProduct(req.ProductID, s.address), nil
}
