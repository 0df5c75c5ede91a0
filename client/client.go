package client

import (
	"consultant/types"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gofiber/fiber/v2"
)

// Expectation is what a question needs from the knowledge base to pass.
type Expectation int

const (
	AnyContext Expectation = iota
	WithContext
	WithoutContext
)

type Question struct {
	Text   string
	Expect Expectation
}

// Samples are the questions the smoke run asks by default: two answered
// by the bundled articles and one that none of them cover.
var Samples = []Question{
	{Text: "How much should a small business budget for Google Ads?", Expect: WithContext},
	{Text: "What is a landing page and why is it important?", Expect: WithContext},
	{Text: "What are the best strategies for email marketing?", Expect: WithoutContext},
}

type Result struct {
	Question Question
	Code     int
	Response types.AskResponse
	Err      error
	Took     time.Duration
}

// Failure explains why the result does not pass, or is empty when it does.
func (r Result) Failure() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Code != fiber.StatusOK:
		return fmt.Sprintf("unexpected status code %d", r.Code)
	case r.Response.Status != types.StatusOK:
		return fmt.Sprintf("unexpected status %q", r.Response.Status)
	case strings.TrimSpace(r.Response.Answer) == "":
		return "empty answer"
	case r.Question.Expect == WithContext && !r.Response.ContextFound:
		return "expected an answer from the knowledge base"
	case r.Question.Expect == WithoutContext && r.Response.ContextFound:
		return "expected no supporting context"
	}
	return ""
}

func (r Result) Passed() bool { return r.Failure() == "" }

type Client struct {
	url     string
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{url: strings.TrimRight(baseURL, "/") + "/ask", timeout: timeout}
}

// Ask posts a single question and decodes the reply, error bodies included.
func (c *Client) Ask(question string) (int, types.AskResponse, error) {
	var resp types.AskResponse
	code, body, errs := fiber.Post(c.url).
		JSON(types.AskRequest{Question: question}).
		Timeout(c.timeout).
		Bytes()
	if len(errs) > 0 {
		return 0, resp, fmt.Errorf("error connecting to the API: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return code, resp, fmt.Errorf("api error %d: %s", code, apiErr.Error)
		}
		return code, resp, nil
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return code, resp, fmt.Errorf("failed to decode JSON from response: %w", err)
	}
	return code, resp, nil
}

// Run asks every question in order. It stops early when ctx is done.
func (c *Client) Run(ctx context.Context, questions []Question) []Result {
	results := make([]Result, 0, len(questions))
	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Question: q, Err: err})
			continue
		}
		start := time.Now()
		code, resp, err := c.Ask(q.Text)
		results = append(results, Result{Question: q, Code: code, Response: resp, Err: err, Took: time.Since(start)})
	}
	return results
}

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(80)
)

// Render prints one block per result and returns the number of failures.
func Render(w io.Writer, results []Result) int {
	failed := 0
	for _, r := range results {
		label := passStyle.Render("PASS")
		if !r.Passed() {
			label = failStyle.Render("FAIL")
			failed++
		}
		fmt.Fprintf(w, "%s %s %s\n", label, r.Question.Text, mutedStyle.Render(r.Took.Round(time.Millisecond).String()))
		if reason := r.Failure(); reason != "" {
			fmt.Fprintln(w, mutedStyle.Render("  "+reason))
		}
		if r.Response.Answer != "" {
			fmt.Fprintln(w, answerStyle.Render(r.Response.Answer))
		}
		for _, s := range r.Response.Sources {
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  [%s #%d] %.3f", s.Source, s.Position, s.Score)))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d/%d passed\n", len(results)-failed, len(results))
	return failed
}
