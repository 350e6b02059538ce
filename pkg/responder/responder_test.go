package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haidar/ragchat/pkg/index"
	"github.com/haidar/ragchat/pkg/llm"
	"github.com/haidar/ragchat/pkg/store"
)

type fakeIndex struct {
	results   []index.Result
	searchErr error
	lastQuery string
	lastK     int
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]index.Result, error) {
	f.lastQuery = query
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

func (f *fakeIndex) Meta() index.Metadata { return index.Metadata{} }
func (f *fakeIndex) Close() error         { return nil }

type fakeStore struct {
	index     store.Index
	indexErr  error
	histories map[string]*store.History
}

func newFakeStore(ix store.Index) *fakeStore {
	return &fakeStore{index: ix, histories: make(map[string]*store.History)}
}

func (f *fakeStore) GetIndex(sessionKey string) (store.Index, error) {
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	return f.index, nil
}

func (f *fakeStore) GetHistory(sessionKey string) *store.History {
	h, ok := f.histories[sessionKey]
	if !ok {
		h = &store.History{}
		f.histories[sessionKey] = h
	}
	return h
}

func (f *fakeStore) LockSession(sessionKey string) func() { return func() {} }

// fakeLLM replays canned completions and records every request it saw.
type fakeLLM struct {
	replies  []string
	err      error
	requests []llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no canned reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeLLM) Provider() string { return "fake" }

func testResults() []index.Result {
	return []index.Result{
		{Content: "alpha", Page: 1, Score: 0.9},
		{Content: "beta", Page: 2, Score: 0.8},
		{Content: "gamma", Page: 1, Score: 0.7},
		{Content: "delta", Page: 3, Score: 0.6},
	}
}

func TestRespondFirstTurn(t *testing.T) {
	ix := &fakeIndex{results: testResults()}
	st := newFakeStore(ix)
	model := &fakeLLM{replies: []string{"the answer"}}
	r := New(st, model, Config{TopK: 4, MaxSources: 3}, zerolog.Nop())

	res, err := r.Respond(context.Background(), "session_t1", "what is alpha?")
	require.NoError(t, err)

	assert.Equal(t, "the answer", res.Answer)
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3"}, res.Sources)

	// No history yet, so only the answer call reaches the model and the raw
	// prompt is the retrieval query.
	require.Len(t, model.requests, 1)
	assert.Equal(t, "what is alpha?", ix.lastQuery)
	assert.Equal(t, 4, ix.lastK)

	// The retrieved chunks are stuffed into the system prompt.
	assert.Contains(t, model.requests[0].System, "alpha")
	assert.Contains(t, model.requests[0].System, "delta")
}

func TestRespondAppendsHistory(t *testing.T) {
	st := newFakeStore(&fakeIndex{results: testResults()})
	model := &fakeLLM{replies: []string{"first answer"}}
	r := New(st, model, Config{}, zerolog.Nop())

	_, err := r.Respond(context.Background(), "session_t2", "question one")
	require.NoError(t, err)

	msgs := st.GetHistory("session_t2").Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "question one", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "first answer", msgs[1].Content)
}

func TestRespondReformulatesFollowUp(t *testing.T) {
	ix := &fakeIndex{results: testResults()}
	st := newFakeStore(ix)
	st.GetHistory("session_t3").Append("user", "tell me about alpha")
	st.GetHistory("session_t3").Append("assistant", "alpha is on page 1")

	model := &fakeLLM{replies: []string{"what page is alpha on?", "page 1"}}
	r := New(st, model, Config{}, zerolog.Nop())

	res, err := r.Respond(context.Background(), "session_t3", "which page?")
	require.NoError(t, err)
	assert.Equal(t, "page 1", res.Answer)

	// First call reformulates, second answers.
	require.Len(t, model.requests, 2)
	assert.Contains(t, model.requests[0].System, "standalone question")
	assert.Equal(t, "what page is alpha on?", ix.lastQuery)

	// The answer call sees the prior turns plus the new prompt.
	answerReq := model.requests[1]
	require.Len(t, answerReq.Messages, 3)
	assert.Equal(t, "which page?", answerReq.Messages[2].Content)
}

func TestRespondReformulationFailureFallsBack(t *testing.T) {
	ix := &fakeIndex{results: testResults()}
	st := newFakeStore(ix)
	st.GetHistory("session_t4").Append("user", "earlier question")

	// One failed reformulation, then a successful answer.
	model := &flakyLLM{failures: 1, reply: "answered anyway"}
	r := New(st, model, Config{}, zerolog.Nop())

	res, err := r.Respond(context.Background(), "session_t4", "follow up")
	require.NoError(t, err)
	assert.Equal(t, "answered anyway", res.Answer)
	assert.Equal(t, "follow up", ix.lastQuery)
}

type flakyLLM struct {
	failures int
	reply    string
}

func (f *flakyLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", errors.New("transient upstream error")
	}
	return f.reply, nil
}

func (f *flakyLLM) Provider() string { return "flaky" }

func TestRespondMissingSession(t *testing.T) {
	st := newFakeStore(nil)
	st.indexErr = store.ErrSessionNotFound
	r := New(st, &fakeLLM{}, Config{}, zerolog.Nop())

	_, err := r.Respond(context.Background(), "session_missing", "hello?")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	// A failed turn leaves no trace in the history.
	assert.Equal(t, 0, st.GetHistory("session_missing").Len())
}

func TestRespondSearchFailure(t *testing.T) {
	ix := &fakeIndex{searchErr: errors.New("db locked")}
	st := newFakeStore(ix)
	r := New(st, &fakeLLM{replies: []string{"unused"}}, Config{}, zerolog.Nop())

	_, err := r.Respond(context.Background(), "session_t5", "hello")
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "retrieval", genErr.Stage)
	assert.True(t, strings.Contains(err.Error(), "db locked"))
	assert.Equal(t, 0, st.GetHistory("session_t5").Len())
}

func TestRespondCompletionFailure(t *testing.T) {
	st := newFakeStore(&fakeIndex{results: testResults()})
	r := New(st, &fakeLLM{err: errors.New("rate limited")}, Config{}, zerolog.Nop())

	_, err := r.Respond(context.Background(), "session_t6", "hello")
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "completion", genErr.Stage)
	assert.Equal(t, 0, st.GetHistory("session_t6").Len())
}

func TestSourcesDeduplicateAndCap(t *testing.T) {
	r := New(newFakeStore(nil), &fakeLLM{}, Config{MaxSources: 2}, zerolog.Nop())

	sources := r.sources(testResults())
	assert.Equal(t, []string{"Page 1", "Page 2"}, sources)

	r = New(newFakeStore(nil), &fakeLLM{}, Config{}, zerolog.Nop())
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3"}, r.sources(testResults()))

	assert.Empty(t, r.sources(nil))
}
