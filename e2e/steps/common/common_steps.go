package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	SetBaseURL(url string)
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers background, request and assertion steps shared by
// every feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the composite gateway is running at "([^"]*)"$`, steps.gatewayRunningAt)
	ctx.Step(`^the composite gateway is running$`, steps.gatewayRunning)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should equal (\d+)$`, steps.fieldShouldEqualNumber)
	ctx.Step(`^the error message should be "([^"]*)"$`, steps.errorMessageShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) gatewayRunningAt(ctx context.Context, url string) error {
	s.tc.SetBaseURL(url)
	return s.gatewayRunning(ctx)
}

func (s *commonSteps) gatewayRunning(ctx context.Context) error {
	if err := s.tc.GET("/health", nil); err != nil {
		return fmt.Errorf("gateway not reachable: %w", err)
	}
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected %s=%q, got %v", field, expected, value)
	}
	return nil
}

func (s *commonSteps) fieldShouldEqualNumber(ctx context.Context, field string, expected int) error {
	return s.fieldShouldEqual(ctx, field, strconv.Itoa(expected))
}

func (s *commonSteps) errorMessageShouldBe(ctx context.Context, expected string) error {
	return s.fieldShouldEqual(ctx, "message", expected)
}
