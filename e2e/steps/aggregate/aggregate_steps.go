package aggregate

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	POST(path string, body interface{}) error
	POSTRaw(path, contentType string, body []byte) error
	DELETE(path string) error
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers aggregate read and write step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &aggregateSteps{tc: tc}

	// Reads
	ctx.Step(`^I get the aggregate for product (\d+)$`, steps.getAggregate)
	ctx.Step(`^I get the aggregate for product (\d+) with delay (\d+) and fault percent (\d+)$`, steps.getAggregateWithKnobs)
	ctx.Step(`^I get the aggregate for product "([^"]*)"$`, steps.getAggregateRaw)
	ctx.Step(`^the aggregate should have (\d+) recommendations and (\d+) reviews$`, steps.aggregateShouldHave)
	ctx.Step(`^the aggregate should report a gateway service address$`, steps.aggregateShouldReportAddress)

	// Writes
	ctx.Step(`^I create an aggregate for product (\d+) with (\d+) recommendations and (\d+) reviews$`, steps.createAggregate)
	ctx.Step(`^I create an aggregate with a malformed body$`, steps.createMalformed)
	ctx.Step(`^I delete the aggregate for product (\d+)$`, steps.deleteAggregate)
}

type aggregateSteps struct {
	tc TestContext
}

func (s *aggregateSteps) getAggregate(ctx context.Context, productID int) error {
	return s.tc.GET(fmt.Sprintf("/composite/%d", productID), nil)
}

func (s *aggregateSteps) getAggregateWithKnobs(ctx context.Context, productID, delay, faultPercent int) error {
	return s.tc.GET(fmt.Sprintf("/composite/%d?delay=%d&faultPercent=%d", productID, delay, faultPercent), nil)
}

func (s *aggregateSteps) getAggregateRaw(ctx context.Context, productID string) error {
	return s.tc.GET("/composite/"+productID, nil)
}

func (s *aggregateSteps) aggregateShouldHave(ctx context.Context, recs, reviews int) error {
	if err := s.listLengthShouldBe("recommendations", recs); err != nil {
		return err
	}
	return s.listLengthShouldBe("reviews", reviews)
}

func (s *aggregateSteps) listLengthShouldBe(field string, expected int) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("expected %s to be a list, got %T", field, value)
	}
	if len(list) != expected {
		return fmt.Errorf("expected %d %s, got %d", expected, field, len(list))
	}
	return nil
}

func (s *aggregateSteps) aggregateShouldReportAddress(ctx context.Context) error {
	value, err := s.tc.GetResponseField("serviceAddresses")
	if err != nil {
		return err
	}
	addresses, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("expected serviceAddresses object, got %T", value)
	}
	if cmp, _ := addresses["cmp"].(string); cmp == "" {
		return fmt.Errorf("serviceAddresses.cmp is empty")
	}
	return nil
}

func (s *aggregateSteps) createAggregate(ctx context.Context, productID, recs, reviews int) error {
	recommendations := make([]map[string]interface{}, 0, recs)
	for i := 1; i <= recs; i++ {
		recommendations = append(recommendations, map[string]interface{}{
			"recommendationId": i,
			"author":           fmt.Sprintf("author %d", i),
			"rate":             i,
			"content":          fmt.Sprintf("content %d", i),
		})
	}
	reviewList := make([]map[string]interface{}, 0, reviews)
	for i := 1; i <= reviews; i++ {
		reviewList = append(reviewList, map[string]interface{}{
			"reviewId": i,
			"author":   fmt.Sprintf("author %d", i),
			"subject":  fmt.Sprintf("subject %d", i),
			"content":  fmt.Sprintf("content %d", i),
		})
	}

	body := map[string]interface{}{
		"productId":       productID,
		"name":            fmt.Sprintf("product %d", productID),
		"weight":          productID,
		"recommendations": recommendations,
		"reviews":         reviewList,
	}
	return s.tc.POST("/composite", body)
}

func (s *aggregateSteps) createMalformed(ctx context.Context) error {
	return s.tc.POSTRaw("/composite", "application/json", []byte(`{"productId":`))
}

func (s *aggregateSteps) deleteAggregate(ctx context.Context, productID int) error {
	return s.tc.DELETE(fmt.Sprintf("/composite/%d", productID))
}
