package client

import (
	"bytes"
	"consultant/types"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAPI answers every question with the reply registered for it.
func newAPI(t *testing.T, replies map[string]types.AskResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ask", r.URL.Path)
		var req types.AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp, ok := replies[req.Question]
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "error", "code": 503, "error": "language model is unavailable"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Samples(t *testing.T) {
	srv := newAPI(t, map[string]types.AskResponse{
		Samples[0].Text: {
			Answer: "Start with a small daily budget.", Status: types.StatusOK, ContextFound: true,
			Sources: []types.Source{{Text: "budget", Source: "Google Ads", Score: 0.7}},
		},
		Samples[1].Text: {Answer: "A page built for one campaign.", Status: types.StatusOK, ContextFound: true, Sources: []types.Source{}},
		Samples[2].Text: {Answer: "I could not find an answer.", Status: types.StatusOK, Sources: []types.Source{}},
	})

	results := New(srv.URL+"/", time.Second).Run(context.Background(), Samples)
	require.Len(t, results, len(Samples))
	for _, r := range results {
		assert.True(t, r.Passed(), "%s: %s", r.Question.Text, r.Failure())
	}
	assert.Equal(t, "Google Ads", results[0].Response.Sources[0].Source)

	var out bytes.Buffer
	assert.Equal(t, 0, Render(&out, results))
	assert.Contains(t, out.String(), "PASS")
	assert.Contains(t, out.String(), "3/3 passed")
}

func TestRun_Failures(t *testing.T) {
	srv := newAPI(t, map[string]types.AskResponse{
		"empty":       {Answer: "  ", Status: types.StatusOK},
		"no context":  {Answer: "I could not find an answer.", Status: types.StatusOK},
		"has context": {Answer: "14 days.", Status: types.StatusOK, ContextFound: true},
	})

	questions := []Question{
		{Text: "empty"},
		{Text: "no context", Expect: WithContext},
		{Text: "has context", Expect: WithoutContext},
		{Text: "unknown"},
	}
	results := New(srv.URL, time.Second).Run(context.Background(), questions)
	require.Len(t, results, len(questions))

	assert.Equal(t, "empty answer", results[0].Failure())
	assert.Equal(t, "expected an answer from the knowledge base", results[1].Failure())
	assert.Equal(t, "expected no supporting context", results[2].Failure())
	assert.Equal(t, http.StatusServiceUnavailable, results[3].Code)
	assert.Contains(t, results[3].Failure(), "language model is unavailable")

	var out bytes.Buffer
	assert.Equal(t, 4, Render(&out, results))
	assert.Contains(t, out.String(), "FAIL")
	assert.Contains(t, out.String(), "0/4 passed")
}

func TestRun_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	results := New(url, time.Second).Run(context.Background(), Samples[:1])
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.False(t, results[0].Passed())
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := New("http://127.0.0.1:1", time.Second).Run(ctx, Samples)
	require.Len(t, results, len(Samples))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
