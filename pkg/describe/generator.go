// Package describe turns review snippets into a short narrative description
// for an imported place, using the Anthropic API. Generation is best-effort:
// callers treat any error as "no description".
package describe

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/stayguide/guide-cli/internal/model"
)

const defaultMaxTokens = 300

const systemPrompt = `You write short, welcoming descriptions of local places for a travel guide.
Given a place name, its rating, and a few visitor reviews, write 2-3 sentences
describing the place for a guest staying nearby. Write in the language of the
reviews. Do not mention the reviews, ratings, or review counts directly.
Return only the description text.`

// Input carries everything the generator needs for one place.
type Input struct {
	PlaceName   string
	Rating      float64
	RatingCount int
	Reviews     []model.Review
}

// Generator produces a narrative description from reviews.
type Generator interface {
	Generate(ctx context.Context, in Input) (string, error)
}

// Option configures the generator.
type Option func(*sdkGenerator)

// WithModel overrides the default model.
func WithModel(m string) Option {
	return func(g *sdkGenerator) {
		if m != "" {
			g.model = m
		}
	}
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) Option {
	return func(g *sdkGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

type sdkGenerator struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewGenerator creates a Generator backed by the Anthropic SDK.
func NewGenerator(apiKey string, opts ...Option) Generator {
	g := &sdkGenerator{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     "claude-haiku-4-5-20251001",
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *sdkGenerator) Generate(ctx context.Context, in Input) (string, error) {
	if len(in.Reviews) == 0 {
		return "", eris.New("describe: no reviews")
	}

	msg, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: g.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(in))),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "describe: create message")
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", eris.New("describe: empty response")
	}
	return text, nil
}

// buildPrompt renders the user message for one place.
func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Place: %s\n", in.PlaceName)
	if in.Rating > 0 {
		fmt.Fprintf(&b, "Rating: %.1f (%d reviews)\n", in.Rating, in.RatingCount)
	}
	b.WriteString("\nReviews:\n")

	// Cap the prompt at a handful of reviews; more adds tokens, not signal.
	reviews := in.Reviews
	if len(reviews) > 5 {
		reviews = reviews[:5]
	}
	for _, r := range reviews {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if len(text) > 500 {
			text = text[:500]
		}
		fmt.Fprintf(&b, "- (%.0f/5) %s\n", r.Rating, text)
	}
	return b.String()
}
