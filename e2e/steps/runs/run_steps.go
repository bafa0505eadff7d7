package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	StatusCode() int
	ResponseBody() string
	GetResponseField(field string) (interface{}, error)
	GetRunID() string
	SetRunID(id string)
}

// pollInterval paces the lifecycle polls. Runs fan checks out concurrently,
// so state assertions wait for the workflow rather than expecting it
// synchronously.
const pollInterval = 500 * time.Millisecond

// RegisterSteps registers run lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &runSteps{tc: tc}

	// Intake steps
	ctx.Step(`^I start a verification run for client "([^"]*)" named "([^"]*)"$`, steps.startRun)
	ctx.Step(`^I start a verification run for client "([^"]*)" named "([^"]*)" with an expired ID document$`, steps.startRunWithExpiredDocument)
	ctx.Step(`^I save the run ID$`, steps.saveRunID)

	// Record steps
	ctx.Step(`^I fetch the run$`, steps.fetchRun)
	ctx.Step(`^I fetch the run summary$`, steps.fetchRunSummary)

	// Lifecycle assertion steps
	ctx.Step(`^the run should have a pending "([^"]*)" review within (\d+) seconds$`, steps.runShouldHavePendingReview)
	ctx.Step(`^the run should complete with a risk assessment within (\d+) seconds$`, steps.runShouldComplete)
	ctx.Step(`^the run should be aborted within (\d+) seconds$`, steps.runShouldBeAborted)

	// Identity decision steps
	ctx.Step(`^I submit an identity decision of "(approved|rejected)" with comments "([^"]*)"$`, steps.submitIdentityDecision)
}

type runSteps struct {
	tc TestContext
}

func (s *runSteps) startRun(ctx context.Context, clientID, clientName string) error {
	return s.tc.POST("/v1/runs", intakeBody(clientID, clientName, time.Now().AddDate(3, 0, 0).Format("2006-01-02")))
}

func (s *runSteps) startRunWithExpiredDocument(ctx context.Context, clientID, clientName string) error {
	return s.tc.POST("/v1/runs", intakeBody(clientID, clientName, "2020-01-01"))
}

// intakeBody assembles a full evidence bundle. The payslip and profile agree
// with each other so the only check expected to fail is web references, which
// the default deployment cannot corroborate.
func intakeBody(clientID, clientName, expiryDate string) map[string]interface{} {
	return map[string]interface{}{
		"client_id":   clientID,
		"client_name": clientName,
		"id_document": map[string]interface{}{
			"document_type":   "passport",
			"full_name":       clientName,
			"date_of_birth":   "1985-06-12",
			"expiry_date":     expiryDate,
			"document_number": "P1234567",
			"nationality":     "GBR",
		},
		"payslip": map[string]interface{}{
			"employee_name": clientName,
			"employer":      "Acme Holdings",
			"gross_pay":     "5200.00",
			"net_pay":       "3900.00",
			"pay_frequency": "monthly",
			"pay_date":      "2025-07-31",
		},
		"financial_profile": map[string]interface{}{
			"declared_annual_income": "60000 - 70000",
			"net_worth":              "250000",
			"source_of_wealth":       "employment income",
		},
		"search_terms": []string{clientName, "Acme Holdings"},
	}
}

func (s *runSteps) saveRunID(ctx context.Context) error {
	runID, err := s.tc.GetResponseField("run_id")
	if err != nil {
		return err
	}
	id, ok := runID.(string)
	if !ok || id == "" {
		return fmt.Errorf("run_id is not a string: %v", runID)
	}
	s.tc.SetRunID(id)
	return nil
}

func (s *runSteps) fetchRun(ctx context.Context) error {
	return s.tc.GET("/v1/runs/"+s.tc.GetRunID(), nil)
}

func (s *runSteps) fetchRunSummary(ctx context.Context) error {
	return s.tc.GET("/v1/runs/"+s.tc.GetRunID()+"/summary", nil)
}

func (s *runSteps) runShouldHavePendingReview(ctx context.Context, reviewType string, seconds int) error {
	return s.poll(ctx, seconds, func() error {
		if err := s.fetchRun(ctx); err != nil {
			return err
		}
		if s.tc.StatusCode() != 200 {
			return fmt.Errorf("fetch run: status %d: %s", s.tc.StatusCode(), s.tc.ResponseBody())
		}
		pending, err := s.tc.GetResponseField("pending_reviews")
		if err != nil {
			return err
		}
		items, ok := pending.([]interface{})
		if !ok {
			return fmt.Errorf("pending_reviews is not an array: %v", pending)
		}
		for _, item := range items {
			review, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if review["verification_type"] == reviewType && review["status"] == "pending" {
				return nil
			}
		}
		return fmt.Errorf("no pending %q review on run %s: %s", reviewType, s.tc.GetRunID(), s.tc.ResponseBody())
	})
}

func (s *runSteps) runShouldComplete(ctx context.Context, seconds int) error {
	return s.poll(ctx, seconds, func() error {
		if err := s.fetchRunSummary(ctx); err != nil {
			return err
		}
		if s.tc.StatusCode() != 200 {
			return fmt.Errorf("summary not ready: status %d", s.tc.StatusCode())
		}
		if _, err := s.tc.GetResponseField("risk_assessment.level"); err != nil {
			return err
		}
		return nil
	})
}

func (s *runSteps) runShouldBeAborted(ctx context.Context, seconds int) error {
	return s.poll(ctx, seconds, func() error {
		if err := s.fetchRun(ctx); err != nil {
			return err
		}
		if s.tc.StatusCode() != 200 {
			return fmt.Errorf("fetch run: status %d: %s", s.tc.StatusCode(), s.tc.ResponseBody())
		}
		aborted, err := s.tc.GetResponseField("aborted")
		if err != nil {
			return fmt.Errorf("run %s is not aborted", s.tc.GetRunID())
		}
		if aborted != true {
			return fmt.Errorf("run %s is not aborted: %v", s.tc.GetRunID(), aborted)
		}
		return nil
	})
}

func (s *runSteps) submitIdentityDecision(ctx context.Context, decision, comments string) error {
	body := map[string]interface{}{
		"approved": decision == "approved",
		"comments": comments,
	}
	return s.tc.POST("/v1/runs/"+s.tc.GetRunID()+"/identity-decision", body)
}

// poll retries check until it passes or the deadline lapses, returning the
// last failure.
func (s *runSteps) poll(ctx context.Context, seconds int, check func() error) error {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	var lastErr error
	for {
		lastErr = check()
		if lastErr == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met within %d seconds: %w", seconds, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
