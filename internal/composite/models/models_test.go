package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	product := Product{ProductID: 1, Name: "name", Weight: 1, ServiceAddress: "product-1:8080"}
	recommendations := []Recommendation{
		{ProductID: 1, RecommendationID: 2, Author: "a", Rate: 3, Content: "c", ServiceAddress: "rec-1:8080"},
		{ProductID: 1, RecommendationID: 1, Author: "b", Rate: 5, Content: "d", ServiceAddress: "rec-2:8080"},
	}
	reviews := []Review{
		{ProductID: 1, ReviewID: 1, Author: "a", Subject: "s", Content: "c", ServiceAddress: "rev-1:8080"},
	}

	agg := Compose(product, recommendations, reviews, "composite:8080")

	assert.Equal(t, 1, agg.ProductID())
	require.Len(t, agg.Recommendations, 2)
	assert.Equal(t, 2, agg.Recommendations[0].RecommendationID, "collaborator order is kept")
	assert.Equal(t, 1, agg.Recommendations[1].RecommendationID)
	require.Len(t, agg.Reviews, 1)
	assert.Equal(t, ServiceAddresses{
		Composite:      "composite:8080",
		Product:        "product-1:8080",
		Review:         "rev-1:8080",
		Recommendation: "rec-1:8080",
	}, agg.ServiceAddresses)
}

func TestCompose_EmptyAndAbsentLists(t *testing.T) {
	product := Product{ProductID: 4, Name: "n", Weight: 2, ServiceAddress: "p"}

	agg := Compose(product, []Recommendation{}, nil, "c")

	assert.NotNil(t, agg.Recommendations)
	assert.Empty(t, agg.Recommendations)
	assert.Nil(t, agg.Reviews)
	assert.Equal(t, "", agg.ServiceAddresses.Recommendation)
	assert.Equal(t, "", agg.ServiceAddresses.Review)
}

func TestAggregateEntities(t *testing.T) {
	agg := NewAggregate(7, "n", 3,
		[]RecommendationSummary{{RecommendationID: 1, Author: "a", Rate: 2, Content: "c"}},
		[]ReviewSummary{{ReviewID: 9, Author: "a", Subject: "s", Content: "c"}},
	)

	assert.Equal(t, Product{ProductID: 7, Name: "n", Weight: 3}, agg.Product())
	assert.Equal(t, []Recommendation{{ProductID: 7, RecommendationID: 1, Author: "a", Rate: 2, Content: "c"}}, agg.RecommendationEntities())
	assert.Equal(t, []Review{{ProductID: 7, ReviewID: 9, Author: "a", Subject: "s", Content: "c"}}, agg.ReviewEntities())
}

func TestFallbackProduct(t *testing.T) {
	p := FallbackProduct(5, "composite:8080")
	assert.Equal(t, Product{ProductID: 5, Name: "Fallback product5", Weight: 5, ServiceAddress: "composite:8080"}, p)
}
