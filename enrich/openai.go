package enrich

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mww/global_leaderboard/model"
	"github.com/sashabaranov/go-openai"
)

const (
	RephraseModel = "gpt-4.1-nano"

	fallbackSentence = "Not possible"
)

var systemPrompt = `You are given a university name, country and website url. You are also given the website opengraph description.

From all of those information you must write a small "about me" section that would be displayed on a website.

If you do not have enough information, the description contains something else than what the school is (like a website navigation), or you just don't know enough about the school, just say "` + fallbackSentence + `".

If the description is not in english, you must translate it in english.

Your message must just be a very simple description of the school.

Your message must not contain the university name or abbreviation: "ABC is a COUNTRY university..." should be "A COUNTRY university...".`

type openAIRephraser struct {
	client *openai.Client
}

func NewOpenAIRephraser(apiKey string) Rephraser {
	return &openAIRephraser{client: openai.NewClient(apiKey)}
}

// NewOpenAIRephraserForTest points the client at baseURL, e.g. "http://127.0.0.1:1234/v1".
func NewOpenAIRephraserForTest(apiKey, baseURL string) Rephraser {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return &openAIRephraser{client: openai.NewClientWithConfig(config)}
}

func (r *openAIRephraser) Rephrase(ctx context.Context, u *model.University, description string) (*string, error) {
	country := u.CountryAlpha3
	if country == "" {
		country = "None"
	}
	userPrompt := fmt.Sprintf("Name: %s\nURL: %s\nCountry: %s\nWebsite Description: %s\n", u.Name, u.URL, country, description)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: RephraseModel,
		// a zero temperature would be dropped from the request
		Temperature: math.SmallestNonzeroFloat32,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in chat completion")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" || strings.EqualFold(strings.TrimSuffix(text, "."), fallbackSentence) {
		return nil, nil
	}
	return &text, nil
}
