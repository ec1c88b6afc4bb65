package e2e

import (
	"github.com/cucumber/godog"

	"composite/e2e/steps/aggregate"
	"composite/e2e/steps/common"
	"composite/e2e/steps/health"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register aggregate read/write steps
	aggregate.RegisterSteps(ctx, tc)

	health.RegisterSteps(ctx, tc)
}
