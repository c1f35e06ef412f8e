package synthesis

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightweaver/internal/intent"
	"insightweaver/internal/kb"
)

type fakeClient struct {
	response  string
	err       error
	gotSystem string
	gotPrompt string
	calls     int
}

func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	c.gotSystem = systemPrompt
	c.gotPrompt = userPrompt
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

type fakeRetriever struct {
	docs []kb.ContextDocument
	err  error
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]kb.ContextDocument, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.docs, nil
}

func TestSynthesizeStripsFencesAndBuildsPrompt(t *testing.T) {
	client := &fakeClient{response: "```json\n{\"steps\": []}\n```"}
	retriever := &fakeRetriever{docs: []kb.ContextDocument{
		{Text: "The orders table has one row per order item."},
	}}
	s := NewSynthesizer(retriever, client, nil)

	program, err := s.Synthesize(context.Background(), "Which region has the most orders?")
	require.NoError(t, err)
	assert.Equal(t, `{"steps": []}`, program)

	assert.Equal(t, 1, client.calls, "one completion per question")
	assert.Contains(t, client.gotSystem, "CRITICAL RULES")
	assert.Contains(t, client.gotPrompt, "one row per order item")
	assert.Contains(t, client.gotPrompt, "Which region has the most orders?")
	assert.Contains(t, client.gotPrompt, "ranking/comparison", "ranking guidance selected")
}

func TestSynthesizeEmptyQuestion(t *testing.T) {
	s := NewSynthesizer(&fakeRetriever{}, &fakeClient{}, nil)

	_, err := s.Synthesize(context.Background(), "   ")
	var se *SynthesisError
	require.ErrorAs(t, err, &se)
}

func TestSynthesizeRetrievalErrorPassesThrough(t *testing.T) {
	want := &kb.RetrievalError{Err: fmt.Errorf("store missing")}
	s := NewSynthesizer(&fakeRetriever{err: want}, &fakeClient{}, nil)

	_, err := s.Synthesize(context.Background(), "Which region leads?")
	var re *kb.RetrievalError
	require.ErrorAs(t, err, &re)

	_, wrapped := err.(*SynthesisError)
	assert.False(t, wrapped, "retrieval failures keep their own type")
}

func TestSynthesizeModelFailure(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("rate limited")}
	s := NewSynthesizer(&fakeRetriever{}, client, nil)

	_, err := s.Synthesize(context.Background(), "Which region leads?")
	var se *SynthesisError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSynthesizeEmptyCompletion(t *testing.T) {
	client := &fakeClient{response: "``` ```"}
	s := NewSynthesizer(&fakeRetriever{}, client, nil)

	_, err := s.Synthesize(context.Background(), "Which region leads?")
	var se *SynthesisError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "empty content")
}

func TestBuildPromptGuidancePerIntent(t *testing.T) {
	tests := []struct {
		bucket intent.Intent
		want   string
	}{
		{intent.Correlation, "correlation/factors"},
		{intent.Ranking, "ranking/comparison"},
		{intent.Rate, "rate/percentage"},
	}
	for _, tt := range tests {
		prompt := BuildPrompt("q", nil, tt.bucket)
		assert.Contains(t, prompt, tt.want)
	}

	// Revenue and Generic get no extra guidance block.
	prompt := BuildPrompt("q", nil, intent.Revenue)
	assert.NotContains(t, prompt, "IMPORTANT:")
}
