package bot

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

type routeContext struct {
	telebot.Context

	text     string
	callback *telebot.Callback
	sent     []string
	store    map[string]interface{}
}

func (r *routeContext) Set(key string, val interface{}) {
	if r.store == nil {
		r.store = make(map[string]interface{})
	}
	r.store[key] = val
}

func (r *routeContext) Get(key string) interface{} { return r.store[key] }

func (r *routeContext) Text() string                 { return r.text }
func (r *routeContext) Callback() *telebot.Callback  { return r.callback }
func (r *routeContext) Sender() *telebot.User        { return &telebot.User{ID: 1} }
func (r *routeContext) Respond(_ ...*telebot.CallbackResponse) error {
	return nil
}

func (r *routeContext) Send(what interface{}, _ ...interface{}) error {
	if text, ok := what.(string); ok {
		r.sent = append(r.sent, text)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCommandName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/recipe курица, рис", "/recipe"},
		{"/start", "/start"},
		{"/balance@aichef_bot", "/balance"},
		{"/recipe@aichef_bot яйца", "/recipe"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, commandName(tc.in), tc.in)
	}
}

func TestRouter_CommandWithPayloadIsMatched(t *testing.T) {
	router := NewRouter(testLogger())

	var got string
	router.RegisterCommand("/recipe", func(c telebot.Context) error {
		got = c.Text()
		return nil
	})

	c := &routeContext{text: "/recipe курица"}
	require.NoError(t, router.Route(c))
	assert.Equal(t, "/recipe курица", got)
}

func TestRouter_CallbackPrefixDispatch(t *testing.T) {
	router := NewRouter(testLogger())

	var got string
	router.RegisterCallback("buy_", func(c telebot.Context) error {
		got = c.Callback().Data
		return nil
	})

	c := &routeContext{callback: &telebot.Callback{Data: "buy_small"}}
	require.NoError(t, router.Route(c))
	assert.Equal(t, "buy_small", got)
}

func TestRouter_UnmatchedMessageFallsBack(t *testing.T) {
	router := NewRouter(testLogger())

	fallback := false
	router.SetDefault(func(telebot.Context) error {
		fallback = true
		return nil
	})

	require.NoError(t, router.Route(&routeContext{text: "курица и рис"}))
	assert.True(t, fallback)
}

func TestErrorHandlingMiddleware_SendsExactlyOneNotice(t *testing.T) {
	router := NewRouter(testLogger())
	router.Use(ErrorHandlingMiddleware(nil))

	router.RegisterCommand("/recipe", func(telebot.Context) error {
		return errors.New("storage down")
	})

	c := &routeContext{text: "/recipe яйца"}
	require.NoError(t, router.Route(c), "error is swallowed after the notice")
	assert.Len(t, c.sent, 1)
}
