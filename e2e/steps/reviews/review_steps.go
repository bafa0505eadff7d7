package reviews

import (
	"context"
	"fmt"

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
}

// RegisterSteps registers review worklist step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &reviewSteps{tc: tc}

	// Worklist steps
	ctx.Step(`^I list the open reviews$`, steps.listOpenReviews)
	ctx.Step(`^the worklist should contain a "([^"]*)" review for the run$`, steps.worklistShouldContainReview)

	// Decision steps
	ctx.Step(`^I approve the "([^"]*)" review with comments "([^"]*)"$`, steps.approveReview)
	ctx.Step(`^I reject the "([^"]*)" review with comments "([^"]*)"$`, steps.rejectReview)
}

type reviewSteps struct {
	tc TestContext
}

func (s *reviewSteps) listOpenReviews(ctx context.Context) error {
	return s.tc.GET("/v1/reviews?status=pending", nil)
}

func (s *reviewSteps) worklistShouldContainReview(ctx context.Context, reviewType string) error {
	reviews, err := s.tc.GetResponseField("reviews")
	if err != nil {
		return err
	}
	items, ok := reviews.([]interface{})
	if !ok {
		return fmt.Errorf("reviews is not an array: %v", reviews)
	}
	for _, item := range items {
		review, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if review["run_id"] == s.tc.GetRunID() && review["verification_type"] == reviewType {
			return nil
		}
	}
	return fmt.Errorf("worklist has no %q review for run %s: %s", reviewType, s.tc.GetRunID(), s.tc.ResponseBody())
}

func (s *reviewSteps) approveReview(ctx context.Context, reviewType, comments string) error {
	return s.submitReview(reviewType, true, comments)
}

func (s *reviewSteps) rejectReview(ctx context.Context, reviewType, comments string) error {
	return s.submitReview(reviewType, false, comments)
}

func (s *reviewSteps) submitReview(reviewType string, approved bool, comments string) error {
	body := map[string]interface{}{
		"approved": approved,
		"comments": comments,
	}
	return s.tc.POST("/v1/runs/"+s.tc.GetRunID()+"/reviews/"+reviewType, body)
}
