package common

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
	SetAccessToken(token string)
}

// RegisterSteps registers generic request and assertion step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Background steps
	ctx.Step(`^the service is healthy$`, steps.serviceIsHealthy)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)

	// Generic request steps
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I POST to "([^"]*)" with body:$`, steps.postWithBody)

	// Generic assertion steps
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should exist$`, steps.responseFieldShouldExist)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsHealthy(ctx context.Context) error {
	if err := s.tc.GET("/healthz", nil); err != nil {
		return err
	}
	if s.tc.StatusCode() != 200 {
		return fmt.Errorf("expected healthy service, got status %d: %s", s.tc.StatusCode(), s.tc.ResponseBody())
	}
	return nil
}

func (s *commonSteps) notAuthenticated(ctx context.Context) error {
	s.tc.SetAccessToken("")
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) postWithBody(ctx context.Context, path string, body *godog.DocString) error {
	var payload interface{}
	if body != nil && body.Content != "" {
		payload = rawJSON(body.Content)
	}
	return s.tc.POST(path, payload)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if s.tc.StatusCode() != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.tc.StatusCode(), s.tc.ResponseBody())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	actual := fmt.Sprintf("%v", value)
	if actual != expected {
		return fmt.Errorf("expected field %q to be %q, got %q", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldExist(ctx context.Context, field string) error {
	_, err := s.tc.GetResponseField(field)
	return err
}

// rawJSON lets docstring bodies pass through marshalling unchanged, so
// scenarios can express malformed or exact payloads.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return []byte(r), nil
}
