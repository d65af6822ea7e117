// Package insightsvc summarizes attendance with a Gemini model.
package insightsvc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

const (
	promptHeader   = "Analyze the following attendance data and provide insights about attendance patterns, frequent absentees, and recommendations for improvement:\n"
	defaultTimeout = 15 * time.Second
)

var ErrEmptyInsight = errors.New("model returned no text")

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Generator struct {
	client  *genai.Client
	model   contentGenerator
	timeout time.Duration
}

var _ attendance.InsightGenerator = (*Generator)(nil)

// NewGenerator connects to the Gemini API. Close the generator when done.
func NewGenerator(ctx context.Context, conf *core.Config) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(conf.Insight.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}
	return &Generator{
		client:  client,
		model:   client.GenerativeModel(conf.Insight.Model),
		timeout: timeoutOrDefault(conf.Insight.Timeout),
	}, nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

// Prompt renders the text sent to the model.
func Prompt(data []attendance.InsightInput) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding attendance data")
	}
	return promptHeader + string(b), nil
}

// Analyze returns the concatenated text parts of the model's answer.
func (g *Generator) Analyze(ctx context.Context, data []attendance.InsightInput) (string, error) {
	prompt, err := Prompt(data)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", core.NewKindError(core.KindTransport, "insight.Analyze", errors.Wrap(err, "generating content"))
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break // first candidate only
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", core.NewKindError(core.KindTransport, "insight.Analyze", ErrEmptyInsight)
	}
	return sb.String(), nil
}

func (g *Generator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
