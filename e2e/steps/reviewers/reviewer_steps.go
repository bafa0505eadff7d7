package reviewers

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	StatusCode() int
	ResponseBody() string
	GetResponseField(field string) (interface{}, error)
	SetAccessToken(token string)
	ReviewerEmail() string
	ReviewerPassword() string
}

// RegisterSteps registers reviewer account step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &reviewerSteps{tc: tc}

	ctx.Step(`^I log in as the seeded reviewer$`, steps.loginAsSeededReviewer)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, steps.loginAs)
	ctx.Step(`^I save the access token$`, steps.saveAccessToken)
	ctx.Step(`^the login should be rejected$`, steps.loginShouldBeRejected)
}

type reviewerSteps struct {
	tc TestContext
}

func (s *reviewerSteps) loginAsSeededReviewer(ctx context.Context) error {
	if err := s.loginAs(ctx, s.tc.ReviewerEmail(), s.tc.ReviewerPassword()); err != nil {
		return err
	}
	if s.tc.StatusCode() != 200 {
		return fmt.Errorf("seeded reviewer login failed: status %d: %s", s.tc.StatusCode(), s.tc.ResponseBody())
	}
	return s.saveAccessToken(ctx)
}

func (s *reviewerSteps) loginAs(ctx context.Context, email, password string) error {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	return s.tc.POST("/v1/reviewer/login", body)
}

func (s *reviewerSteps) saveAccessToken(ctx context.Context) error {
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	value, ok := token.(string)
	if !ok || value == "" {
		return fmt.Errorf("access_token is not a string: %v", token)
	}
	s.tc.SetAccessToken(value)
	return nil
}

func (s *reviewerSteps) loginShouldBeRejected(ctx context.Context) error {
	if s.tc.StatusCode() != 401 {
		return fmt.Errorf("expected login rejection, got status %d: %s", s.tc.StatusCode(), s.tc.ResponseBody())
	}
	return nil
}
