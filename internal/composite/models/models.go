// Package models holds the product aggregate and the collaborator entities it
// is composed from.
package models

import "fmt"

// Product is owned by the product collaborator. The gateway only reads or
// forwards it.
type Product struct {
	ProductID      int    `json:"productId"`
	Name           string `json:"name"`
	Weight         int    `json:"weight"`
	ServiceAddress string `json:"serviceAddress,omitempty"`
}

// Recommendation belongs to exactly one product. (ProductID, RecommendationID)
// uniqueness is enforced by the recommendation collaborator.
type Recommendation struct {
	ProductID        int    `json:"productId"`
	RecommendationID int    `json:"recommendationId"`
	Author           string `json:"author"`
	Rate             int    `json:"rate"`
	Content          string `json:"content"`
	ServiceAddress   string `json:"serviceAddress,omitempty"`
}

// Review belongs to exactly one product.
type Review struct {
	ProductID      int    `json:"productId"`
	ReviewID       int    `json:"reviewId"`
	Author         string `json:"author"`
	Subject        string `json:"subject"`
	Content        string `json:"content"`
	ServiceAddress string `json:"serviceAddress,omitempty"`
}

type RecommendationSummary struct {
	RecommendationID int
	Author           string
	Rate             int
	Content          string
}

type ReviewSummary struct {
	ReviewID int
	Author   string
	Subject  string
	Content  string
}

// ServiceAddresses records which replica served each part of a response. It is
// filled in when the response is built and never persisted.
type ServiceAddresses struct {
	Composite      string
	Product        string
	Review         string
	Recommendation string
}

// Aggregate is a product together with its recommendation and review
// summaries. A nil summary slice means "not requested or not available", an
// empty one means "none exist"; the two are kept distinct.
type Aggregate struct {
	productID        int
	Name             string
	Weight           int
	Recommendations  []RecommendationSummary
	Reviews          []ReviewSummary
	ServiceAddresses ServiceAddresses
}

// NewAggregate builds an aggregate. The product id cannot change afterwards.
func NewAggregate(productID int, name string, weight int, recommendations []RecommendationSummary, reviews []ReviewSummary) Aggregate {
	return Aggregate{
		productID:       productID,
		Name:            name,
		Weight:          weight,
		Recommendations: recommendations,
		Reviews:         reviews,
	}
}

// ProductID returns the immutable product id.
func (a Aggregate) ProductID() int {
	return a.productID
}

// Compose joins a product with its secondary lists. Summary order follows the
// order returned by each collaborator.
func Compose(product Product, recommendations []Recommendation, reviews []Review, compositeAddress string) Aggregate {
	agg := NewAggregate(product.ProductID, product.Name, product.Weight,
		summarizeRecommendations(recommendations), summarizeReviews(reviews))

	agg.ServiceAddresses = ServiceAddresses{
		Composite: compositeAddress,
		Product:   product.ServiceAddress,
	}
	if len(recommendations) > 0 {
		agg.ServiceAddresses.Recommendation = recommendations[0].ServiceAddress
	}
	if len(reviews) > 0 {
		agg.ServiceAddresses.Review = reviews[0].ServiceAddress
	}
	return agg
}

func summarizeRecommendations(in []Recommendation) []RecommendationSummary {
	if in == nil {
		return nil
	}
	out := make([]RecommendationSummary, 0, len(in))
	for _, r := range in {
		out = append(out, RecommendationSummary{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
	}
	return out
}

func summarizeReviews(in []Review) []ReviewSummary {
	if in == nil {
		return nil
	}
	out := make([]ReviewSummary, 0, len(in))
	for _, r := range in {
		out = append(out, ReviewSummary{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		})
	}
	return out
}

// Product returns the product part of the aggregate as it is sent to the
// product collaborator.
func (a Aggregate) Product() Product {
	return Product{ProductID: a.productID, Name: a.Name, Weight: a.Weight}
}

// RecommendationEntities expands the summaries into collaborator entities.
func (a Aggregate) RecommendationEntities() []Recommendation {
	out := make([]Recommendation, 0, len(a.Recommendations))
	for _, s := range a.Recommendations {
		out = append(out, Recommendation{
			ProductID:        a.productID,
			RecommendationID: s.RecommendationID,
			Author:           s.Author,
			Rate:             s.Rate,
			Content:          s.Content,
		})
	}
	return out
}

// ReviewEntities expands the summaries into collaborator entities.
func (a Aggregate) ReviewEntities() []Review {
	out := make([]Review, 0, len(a.Reviews))
	for _, s := range a.Reviews {
		out = append(out, Review{
			ProductID: a.productID,
			ReviewID:  s.ReviewID,
			Author:    s.Author,
			Subject:   s.Subject,
			Content:   s.Content,
		})
	}
	return out
}

// FallbackProduct is the clearly marked placeholder served when the product
// collaborator cannot be reached.
func FallbackProduct(productID int, serviceAddress string) Product {
	return Product{
		ProductID:      productID,
		Name:           fmt.Sprintf("Fallback product%d", productID),
		Weight:         productID,
		ServiceAddress: serviceAddress,
	}
}
