package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/terraphim-labs/roleforge/pkg/llm"
)

// fakeAdapter returns a canned completion per call, or an error/delay
// if configured, without ever reaching a real LLM provider.
type fakeAdapter struct {
	reply string
	err   error
	delay func(ctx context.Context) error // optional: block until ctx says so
	calls int
}

func (f *fakeAdapter) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	f.calls++
	if f.delay != nil {
		if err := f.delay(ctx); err != nil {
			return llm.Completion{}, err
		}
	}
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Content: f.reply}, nil
}

func blockUntilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

var errBoom = errors.New("boom")

func longReply(word string, times int) string {
	words := make([]string, times)
	for i := range words {
		words[i] = word
	}
	return strings.Join(words, " ")
}
