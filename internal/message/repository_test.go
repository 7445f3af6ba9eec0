package message

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db/dbtest"
	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/notification"
)

type fixture struct {
	db            *sql.DB
	repo          *Repository
	notifications *notification.Repository
	seller, buyer string
	outsider      string
	itemID        string
}

func setup(t *testing.T) fixture {
	t.Helper()
	d := dbtest.Open(t)
	notes := notification.NewRepository(d)
	f := fixture{
		db:            d,
		repo:          NewRepository(d, notes),
		notifications: notes,
		seller:        dbtest.User(t, d, "seller@example.com"),
		buyer:         dbtest.User(t, d, "buyer@example.com"),
		outsider:      dbtest.User(t, d, "outsider@example.com"),
	}
	l, err := listing.NewRepository(d).Create(context.Background(), f.seller, listing.CreateInput{
		Title: "Jacket", Category: "Clothing", Condition: "Good",
		PriceEUR: decimal.NewFromInt(10), Locality: "Sliema",
	})
	require.NoError(t, err)
	f.itemID = l.ID
	return f
}

func TestStartThreadReusesPair(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	th, err := f.repo.StartThread(ctx, f.buyer, f.seller, Subject{ItemID: f.itemID})
	require.NoError(t, err)
	require.NotNil(t, th.ItemID)
	assert.Equal(t, f.itemID, *th.ItemID)
	assert.ElementsMatch(t, []string{f.buyer, f.seller}, th.Participants)

	again, err := f.repo.StartThread(ctx, f.seller, f.buyer, Subject{ItemID: f.itemID})
	require.NoError(t, err)
	assert.Equal(t, th.ID, again.ID, "same pair and subject reuse the thread")

	general, err := f.repo.StartThread(ctx, f.buyer, f.seller, Subject{})
	require.NoError(t, err)
	assert.NotEqual(t, th.ID, general.ID)

	_, err = f.repo.StartThread(ctx, f.buyer, f.buyer, Subject{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSendAndUnread(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	th, err := f.repo.StartThread(ctx, f.buyer, f.seller, Subject{ItemID: f.itemID})
	require.NoError(t, err)

	_, err = f.repo.Send(ctx, th.ID, f.buyer, "Is this still available?")
	require.NoError(t, err)
	_, err = f.repo.Send(ctx, th.ID, f.buyer, "I can collect today")
	require.NoError(t, err)

	threads, err := f.repo.ListThreads(ctx, f.seller)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 2, threads[0].UnreadCount)
	assert.Equal(t, "I can collect today", threads[0].LastMessage)

	threads, err = f.repo.ListThreads(ctx, f.buyer)
	require.NoError(t, err)
	assert.Zero(t, threads[0].UnreadCount, "own messages are never unread")

	notes, err := f.notifications.ListByUser(ctx, f.seller, true)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, notification.TypeMessage, notes[0].Type)
	assert.Equal(t, "I can collect today", notes[0].Body)
	require.NotNil(t, notes[0].RelatedItemID)

	require.NoError(t, f.repo.MarkSeen(ctx, th.ID, f.seller))
	threads, err = f.repo.ListThreads(ctx, f.seller)
	require.NoError(t, err)
	assert.Zero(t, threads[0].UnreadCount)

	msgs, err := f.repo.ListMessages(ctx, th.ID, f.seller)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Is this still available?", msgs[0].Body)
}

// failingNotifier writes the batch and then fails, as a constraint error
// on a later row would.
type failingNotifier struct {
	notes *notification.Repository
}

func (n failingNotifier) InsertBatchTx(ctx context.Context, tx *sql.Tx, batch []*notification.Notification) error {
	if err := n.notes.InsertBatchTx(ctx, tx, batch); err != nil {
		return err
	}
	return errors.New("disk I/O error")
}

func TestSendRollsBackWhenNotifyFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	th, err := f.repo.StartThread(ctx, f.buyer, f.seller, Subject{ItemID: f.itemID})
	require.NoError(t, err)

	broken := NewRepository(f.db, failingNotifier{notes: f.notifications})
	_, err = broken.Send(ctx, th.ID, f.buyer, "Is this still available?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notifying participants")

	msgs, err := f.repo.ListMessages(ctx, th.ID, f.seller)
	require.NoError(t, err)
	assert.Empty(t, msgs, "message is not stored without its notifications")

	notes, err := f.notifications.ListByUser(ctx, f.seller, false)
	require.NoError(t, err)
	assert.Empty(t, notes)

	threads, err := f.repo.ListThreads(ctx, f.seller)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Zero(t, threads[0].UnreadCount)
}

func TestParticipantsOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	th, err := f.repo.StartThread(ctx, f.buyer, f.seller, Subject{})
	require.NoError(t, err)

	_, err = f.repo.Send(ctx, th.ID, f.outsider, "hi")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.repo.ListMessages(ctx, th.ID, f.outsider)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.ErrorIs(t, f.repo.MarkSeen(ctx, th.ID, f.outsider), apperr.ErrForbidden)

	_, err = f.repo.Send(ctx, "missing", f.buyer, "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSendValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	th, err := f.repo.StartThread(ctx, f.buyer, f.seller, Subject{})
	require.NoError(t, err)

	_, err = f.repo.Send(ctx, th.ID, f.buyer, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.repo.Send(ctx, th.ID, f.buyer, strings.Repeat("x", maxBodyLen+1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestThreadOrdering(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.repo.StartThread(ctx, f.buyer, f.seller, Subject{})
	require.NoError(t, err)
	second, err := f.repo.StartThread(ctx, f.outsider, f.seller, Subject{})
	require.NoError(t, err)

	_, err = f.repo.Send(ctx, first.ID, f.buyer, "bump")
	require.NoError(t, err)

	threads, err := f.repo.ListThreads(ctx, f.seller)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, first.ID, threads[0].ID)
	assert.Equal(t, second.ID, threads[1].ID)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("é", 100)
	p := preview(long)
	assert.Equal(t, previewLen, len([]rune(p)))
	assert.True(t, strings.HasSuffix(p, "…"))
}
