package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/code-100-precent/ResearchEcho/pkg/arxiv"
	"github.com/code-100-precent/ResearchEcho/pkg/knowledge"
	"github.com/code-100-precent/ResearchEcho/pkg/websearch"
)

// fakeLLM scripted provider that records every call.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return response, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, prompt string, callback func(segment string, done bool) error) (string, error) {
	response, err := f.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if callback != nil {
		if err := callback(response, false); err != nil {
			return "", err
		}
		if err := callback("", true); err != nil {
			return "", err
		}
	}
	return response, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAcademic scripted academic source.
type fakeAcademic struct {
	papers []arxiv.Paper
	err    error
}

func (f *fakeAcademic) Search(ctx context.Context, topic string, keyTerms []string, maxResults int) ([]arxiv.Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.papers, nil
}

// fakeWeb scripted web source.
type fakeWeb struct {
	results []websearch.Result
	err     error
}

func (f *fakeWeb) Search(ctx context.Context, query string, maxResults int) ([]websearch.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeIndex scripted vector index.
type fakeIndex struct {
	matches []knowledge.SearchResult
	err     error

	mu    sync.Mutex
	added []knowledge.Item
}

func (f *fakeIndex) Provider() string { return "fake" }

func (f *fakeIndex) Add(ctx context.Context, items []knowledge.Item, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, items...)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, options knowledge.SearchOptions) ([]knowledge.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeIndex) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added) + len(f.matches), nil
}

// fakeEmbedder deterministic embedder.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}
