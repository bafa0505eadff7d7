package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the black-box suite against a deployed service. Point
// PROVENANCE_E2E_BASE_URL at the deployment; without it the suite skips so
// plain `go test ./...` stays green.
func TestFeatures(t *testing.T) {
	if os.Getenv(EnvBaseURL) == "" {
		t.Skipf("%s not set, skipping end-to-end suite", EnvBaseURL)
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			RegisterSteps(ctx, NewTestContext())
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("end-to-end suite failed")
	}
}
