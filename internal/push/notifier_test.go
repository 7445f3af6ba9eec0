package push

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/evcraddock/mela/internal/db/dbtest"
)

type fakeSender struct {
	mu   sync.Mutex
	sent map[string]Message
	errs map[string]error
}

func (f *fakeSender) Send(_ context.Context, token string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[token]; err != nil {
		return err
	}
	if f.sent == nil {
		f.sent = map[string]Message{}
	}
	f.sent[token] = msg
	return nil
}

func TestNotifySendsToAllDevices(t *testing.T) {
	d := dbtest.Open(t)
	store := NewStore(d)
	ctx := context.Background()
	alice := dbtest.User(t, d, "alice@example.com")
	require.NoError(t, store.Register(ctx, alice, "a1", "ios"))
	require.NoError(t, store.Register(ctx, alice, "a2", "android"))

	sender := &fakeSender{}
	n := NewNotifier(store, sender, nil)

	msg := Message{Title: "Hi", Body: "There", Data: map[string]string{"type": "message"}}
	sent, err := n.Notify(ctx, alice, msg)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, msg, sender.sent["a1"])
}

func TestNotifyPrunesUnregistered(t *testing.T) {
	d := dbtest.Open(t)
	store := NewStore(d)
	ctx := context.Background()
	alice := dbtest.User(t, d, "alice@example.com")
	require.NoError(t, store.Register(ctx, alice, "stale", "ios"))
	require.NoError(t, store.Register(ctx, alice, "fresh", "ios"))

	sender := &fakeSender{errs: map[string]error{"stale": ErrUnregistered}}
	n := NewNotifier(store, sender, nil)

	sent, err := n.Notify(ctx, alice, Message{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	tokens, err := store.TokensForUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, tokens)
}

func TestNotifyReportsFailuresAfterTryingAll(t *testing.T) {
	d := dbtest.Open(t)
	store := NewStore(d)
	ctx := context.Background()
	alice := dbtest.User(t, d, "alice@example.com")
	require.NoError(t, store.Register(ctx, alice, "bad", "ios"))
	require.NoError(t, store.Register(ctx, alice, "good", "ios"))

	boom := errors.New("quota exceeded")
	sender := &fakeSender{errs: map[string]error{"bad": boom}}
	n := NewNotifier(store, sender, nil)

	sent, err := n.Notify(ctx, alice, Message{Title: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sent)

	tokens, err := store.TokensForUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestNotifyNoDevices(t *testing.T) {
	d := dbtest.Open(t)
	alice := dbtest.User(t, d, "alice@example.com")
	n := NewNotifier(NewStore(d), &fakeSender{}, nil)

	sent, err := n.Notify(context.Background(), alice, Message{})
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), "abcdefghijklmnop", Message{Title: "Nike item available!"}))

	entries := logs.FilterMessage("push").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abcdefgh…", fields["token"])
	assert.Equal(t, "Nike item available!", fields["title"])
}
