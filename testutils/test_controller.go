package testutils

import (
	"time"

	"github.com/itbasis/go-clock"
)

// TestController bundles the fake external services a controller talks to.
type TestController struct {
	Clock          *clock.Mock
	fakeUniversity *FakeUniversityServer
	fakeOpenAI     *FakeOpenAIServer
}

func (c *TestController) Close() {
	c.fakeUniversity.Close()
	c.fakeOpenAI.Close()
}

func (c *TestController) UniversityURL() string {
	return c.fakeUniversity.URL()
}

func (c *TestController) OpenAIBaseURL() string {
	return c.fakeOpenAI.BaseURL()
}

func (c *TestController) OpenAI() *FakeOpenAIServer {
	return c.fakeOpenAI
}

func NewTestController() *TestController {
	clock := clock.NewMock()
	clock.Set(CrunchEnd.Add(12 * time.Hour))

	return &TestController{
		Clock:          clock,
		fakeUniversity: NewFakeUniversityServer(),
		fakeOpenAI:     NewFakeOpenAIServer(),
	}
}
