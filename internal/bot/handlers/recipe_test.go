package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/bot/keyboard"
	"github.com/ai-chef/recipe-bot/internal/completion"
	"github.com/ai-chef/recipe-bot/internal/ledger"
)

// fakeContext stubs the telebot.Context methods the flow touches; any
// other call panics through the embedded nil interface.
type fakeContext struct {
	telebot.Context

	text   string
	sender *telebot.User
	sent   []string
	store  map[string]interface{}
}

func (f *fakeContext) Text() string          { return f.text }
func (f *fakeContext) Sender() *telebot.User { return f.sender }

func (f *fakeContext) Set(key string, val interface{}) {
	if f.store == nil {
		f.store = make(map[string]interface{})
	}
	f.store[key] = val
}

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }
func (f *fakeContext) Callback() *telebot.Callback {
	return nil
}

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if text, ok := what.(string); ok {
		f.sent = append(f.sent, text)
	}
	return nil
}

type fakeBackend struct {
	response string
	err      error
	calls    int
	ctxErr   error
}

func (b *fakeBackend) Generate(ctx context.Context, _ string) (string, error) {
	b.calls++
	b.ctxErr = ctx.Err()
	return b.response, b.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFlow(store ledger.Store, backend completion.Client, cfg RecipeFlowConfig) *RecipeFlow {
	return NewRecipeFlow(store, backend, nil, nil, nil, keyboard.NewBuilder(nil), cfg, testLogger())
}

func seed(t *testing.T, store ledger.Store, userID, balance int64) {
	t.Helper()

	applied, err := store.Credit(context.Background(), userID, balance, 0, "seed")
	require.NoError(t, err)
	require.True(t, applied)
}

func TestRecipeFlow_SuccessDebitsExactlyOnce(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, 42, 5)

	backend := &fakeBackend{response: "Омлет: взбейте яйца..."}
	flow := newFlow(store, backend, RecipeFlowConfig{Cost: 1})

	c := &fakeContext{
		text:   "/recipe яйца, молоко",
		sender: &telebot.User{ID: 42},
	}

	require.NoError(t, flow.HandleCommand(c))

	balance, err := store.GetBalance(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)
	assert.Equal(t, 1, backend.calls)

	require.Len(t, c.sent, 1, "exactly one reply per message")
	assert.Contains(t, c.sent[0], "Омлет")
}

func TestRecipeFlow_InsufficientBalanceSingleNotice(t *testing.T) {
	store := ledger.NewMemoryStore()

	backend := &fakeBackend{response: "не должно вызваться"}
	flow := newFlow(store, backend, RecipeFlowConfig{Cost: 1})

	c := &fakeContext{
		text:   "/recipe яйца",
		sender: &telebot.User{ID: 42},
	}

	require.NoError(t, flow.HandleCommand(c))

	assert.Equal(t, 0, backend.calls, "no completion call without a debit")
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "закончились")

	balance, err := store.GetBalance(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance, "balance never goes negative")
}

func TestRecipeFlow_BackendDownKeepsDebitByDefault(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, 42, 5)

	backend := &fakeBackend{err: completion.ErrUnavailable}
	flow := newFlow(store, backend, RecipeFlowConfig{Cost: 1})

	c := &fakeContext{text: "/recipe яйца", sender: &telebot.User{ID: 42}}
	require.NoError(t, flow.HandleCommand(c))

	balance, _ := store.GetBalance(context.Background(), 42)
	assert.Equal(t, int64(4), balance, "refund policy is off by default")
	assert.Len(t, c.sent, 1)
}

func TestRecipeFlow_RefundPolicyRecreditsZeroWorkFailures(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, 42, 5)

	backend := &fakeBackend{err: completion.ErrUnavailable}
	flow := newFlow(store, backend, RecipeFlowConfig{Cost: 1, RefundOnFailure: true})

	c := &fakeContext{text: "/recipe яйца", sender: &telebot.User{ID: 42}}
	require.NoError(t, flow.HandleCommand(c))

	balance, _ := store.GetBalance(context.Background(), 42)
	assert.Equal(t, int64(5), balance, "zero-work failure is refunded")
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "не списан")
}

func TestRecipeFlow_RefundPolicyIgnoresPartialWorkFailures(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, 42, 5)

	// A backend error that is not ErrUnavailable means work may have
	// happened; the debit stands even with the policy on.
	backend := &fakeBackend{err: errors.New("decode response: unexpected EOF")}
	flow := newFlow(store, backend, RecipeFlowConfig{Cost: 1, RefundOnFailure: true})

	c := &fakeContext{text: "/recipe яйца", sender: &telebot.User{ID: 42}}
	require.NoError(t, flow.HandleCommand(c))

	balance, _ := store.GetBalance(context.Background(), 42)
	assert.Equal(t, int64(4), balance)
}

func TestRecipeFlow_PromptTooLong(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, 42, 5)

	backend := &fakeBackend{}
	flow := newFlow(store, backend, RecipeFlowConfig{Cost: 1, MaxPromptLength: 10})

	c := &fakeContext{
		text:   "/recipe курица, рис, морковь, лук, чеснок",
		sender: &telebot.User{ID: 42},
	}
	require.NoError(t, flow.HandleCommand(c))

	assert.Equal(t, 0, backend.calls)

	balance, _ := store.GetBalance(context.Background(), 42)
	assert.Equal(t, int64(5), balance, "no debit for rejected prompts")
}

func TestRecipeFlow_EmptyPromptShowsUsage(t *testing.T) {
	flow := newFlow(ledger.NewMemoryStore(), &fakeBackend{}, RecipeFlowConfig{Cost: 1})

	c := &fakeContext{text: "/recipe", sender: &telebot.User{ID: 42}}
	require.NoError(t, flow.HandleCommand(c))

	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "/recipe")
}

func TestRecipeFlow_InheritsIngestionContext(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, 42, 10)

	backend := &fakeBackend{response: "Рецепт"}
	flow := newFlow(store, backend, RecipeFlowConfig{Cost: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &fakeContext{text: "курица, рис", sender: &telebot.User{ID: 42}}
	BindContext(c, ctx)

	_ = flow.HandleText(c)

	require.Equal(t, 1, backend.calls)
	assert.ErrorIs(t, backend.ctxErr, context.Canceled,
		"generation must run under the ingestion context")
}

func TestRequestContext_FallsBackToBackground(t *testing.T) {
	c := &fakeContext{}
	require.NotNil(t, RequestContext(c))
	assert.NoError(t, RequestContext(c).Err())
}
