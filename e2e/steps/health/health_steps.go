package health

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers health and circuit diagnostics steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &healthSteps{tc: tc}

	ctx.Step(`^I check the gateway health$`, steps.checkHealth)
	ctx.Step(`^the component "([^"]*)" should be "([^"]*)"$`, steps.componentShouldBe)
	ctx.Step(`^I list the circuit breakers$`, steps.listCircuits)
	ctx.Step(`^the circuit "([^"]*)" should be "([^"]*)"$`, steps.circuitShouldBe)
}

type healthSteps struct {
	tc TestContext
}

func (s *healthSteps) checkHealth(ctx context.Context) error {
	return s.tc.GET("/health", nil)
}

func (s *healthSteps) componentShouldBe(ctx context.Context, name, expected string) error {
	value, err := s.tc.GetResponseField("components")
	if err != nil {
		return err
	}
	components, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("expected components object, got %T", value)
	}
	component, ok := components[name].(map[string]interface{})
	if !ok {
		return fmt.Errorf("component %q not reported", name)
	}
	if status := component["status"]; status != expected {
		return fmt.Errorf("expected %s to be %s, got %v", name, expected, status)
	}
	return nil
}

func (s *healthSteps) listCircuits(ctx context.Context) error {
	return s.tc.GET("/circuits", nil)
}

func (s *healthSteps) circuitShouldBe(ctx context.Context, name, expected string) error {
	value, err := s.tc.GetResponseField("circuits")
	if err != nil {
		return err
	}
	circuits, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("expected circuits list, got %T", value)
	}
	for _, c := range circuits {
		entry, _ := c.(map[string]interface{})
		if entry["name"] == name {
			if entry["state"] != expected {
				return fmt.Errorf("expected circuit %s to be %s, got %v", name, expected, entry["state"])
			}
			return nil
		}
	}
	return fmt.Errorf("circuit %q not listed", name)
}
