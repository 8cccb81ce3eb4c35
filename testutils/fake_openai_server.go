package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sashabaranov/go-openai"
)

// Universities whose name contains this word get a refusal from the fake model.
const UnknownUniversityMarker = "Unknown"

// FakeOpenAIServer answers chat completions with the user prompt's description,
// prefixed, and records every request it receives.
type FakeOpenAIServer struct {
	s *httptest.Server

	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
}

func NewFakeOpenAIServer() *FakeOpenAIServer {
	f := &FakeOpenAIServer{}

	r := chi.NewRouter()
	r.Post("/v1/chat/completions", f.chatCompletionHandler)

	f.s = httptest.NewServer(r)
	return f
}

func (f *FakeOpenAIServer) Close() {
	f.s.Close()
}

// BaseURL is the value to use as the client's base url.
func (f *FakeOpenAIServer) BaseURL() string {
	return f.s.URL + "/v1"
}

func (f *FakeOpenAIServer) Requests() []openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]openai.ChatCompletionRequest(nil), f.requests...)
}

func Rephrased(description string) string {
	return "About: " + description
}

func (f *FakeOpenAIServer) chatCompletionHandler(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	var prompt string
	for _, m := range req.Messages {
		if m.Role == openai.ChatMessageRoleUser {
			prompt = m.Content
		}
	}

	answer := "not possible."
	if !strings.Contains(prompt, UnknownUniversityMarker) {
		_, description, _ := strings.Cut(prompt, "Website Description: ")
		answer = Rephrased(strings.TrimSpace(description))
	}

	resp := openai.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: answer},
				FinishReason: openai.FinishReasonStop,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
