package handler

import "composite/internal/composite/models"

// AggregateResponse is the wire form of a product aggregate. Nil summary
// slices stay null on the wire; empty ones become [].
type AggregateResponse struct {
	ProductID        int                      `json:"productId"`
	Name             string                   `json:"name"`
	Weight           int                      `json:"weight"`
	Recommendations  []RecommendationSummary  `json:"recommendations"`
	Reviews          []ReviewSummary          `json:"reviews"`
	ServiceAddresses *ServiceAddressesPayload `json:"serviceAddresses"`
}

// AggregateRequest is the body of POST /composite. serviceAddresses is
// accepted so clients can send back a response they received, and ignored.
type AggregateRequest struct {
	ProductID        int                      `json:"productId"`
	Name             string                   `json:"name"`
	Weight           int                      `json:"weight"`
	Recommendations  []RecommendationSummary  `json:"recommendations"`
	Reviews          []ReviewSummary          `json:"reviews"`
	ServiceAddresses *ServiceAddressesPayload `json:"serviceAddresses,omitempty"`
}

type RecommendationSummary struct {
	RecommendationID int    `json:"recommendationId"`
	Author           string `json:"author"`
	Rate             int    `json:"rate"`
	Content          string `json:"content"`
}

type ReviewSummary struct {
	ReviewID int    `json:"reviewId"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
}

type ServiceAddressesPayload struct {
	Composite      string `json:"cmp"`
	Product        string `json:"pro"`
	Review         string `json:"rev"`
	Recommendation string `json:"rec"`
}

func toResponse(a models.Aggregate) AggregateResponse {
	resp := AggregateResponse{
		ProductID: a.ProductID(),
		Name:      a.Name,
		Weight:    a.Weight,
		ServiceAddresses: &ServiceAddressesPayload{
			Composite:      a.ServiceAddresses.Composite,
			Product:        a.ServiceAddresses.Product,
			Review:         a.ServiceAddresses.Review,
			Recommendation: a.ServiceAddresses.Recommendation,
		},
	}
	if a.Recommendations != nil {
		resp.Recommendations = make([]RecommendationSummary, 0, len(a.Recommendations))
		for _, r := range a.Recommendations {
			resp.Recommendations = append(resp.Recommendations, RecommendationSummary(r))
		}
	}
	if a.Reviews != nil {
		resp.Reviews = make([]ReviewSummary, 0, len(a.Reviews))
		for _, r := range a.Reviews {
			resp.Reviews = append(resp.Reviews, ReviewSummary(r))
		}
	}
	return resp
}

func (req AggregateRequest) toModel() models.Aggregate {
	var recs []models.RecommendationSummary
	if req.Recommendations != nil {
		recs = make([]models.RecommendationSummary, 0, len(req.Recommendations))
		for _, r := range req.Recommendations {
			recs = append(recs, models.RecommendationSummary(r))
		}
	}
	var reviews []models.ReviewSummary
	if req.Reviews != nil {
		reviews = make([]models.ReviewSummary, 0, len(req.Reviews))
		for _, r := range req.Reviews {
			reviews = append(reviews, models.ReviewSummary(r))
		}
	}
	return models.NewAggregate(req.ProductID, req.Name, req.Weight, recs, reviews)
}
