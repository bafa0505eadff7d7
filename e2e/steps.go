package e2e

import (
	"github.com/cucumber/godog"

	"provenance/e2e/steps/common"
	"provenance/e2e/steps/reviewers"
	"provenance/e2e/steps/reviews"
	"provenance/e2e/steps/runs"
)

// RegisterSteps wires every step package into the scenario context. Order
// does not matter; godog matches steps by pattern.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	runs.RegisterSteps(ctx, tc)
	reviews.RegisterSteps(ctx, tc)
	reviewers.RegisterSteps(ctx, tc)
}
