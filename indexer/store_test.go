package indexer

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"escrowchain/core/events"
	"escrowchain/core/types"
	"escrowchain/native/escrow"
)

type payloadEvent struct{ evt *types.Event }

func (p payloadEvent) EventType() string { return p.evt.Type }
func (p payloadEvent) Event() *types.Event { return p.evt }

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func setupTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	store, err := New(db, nil)
	require.NoError(t, err)
	base := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	return store, db
}

func emit(s *Store, eventType string, attrs map[string]string) {
	s.Emit(payloadEvent{evt: &types.Event{Type: eventType, Attributes: attrs}})
}

func TestStoreTracksLifecycle(t *testing.T) {
	store, _ := setupTestStore(t)
	id := "aa"
	emit(store, escrow.EventTypeEscrowCreated, map[string]string{"id": id, "buyer": "01", "seller": "02", "private": "false", "amount": "1000"})
	emit(store, escrow.EventTypeEscrowDisputed, map[string]string{"id": id, "arbitrator": "03"})
	emit(store, escrow.EventTypeEscrowResolved, map[string]string{"id": id, "outcome": "refunded"})
	emit(store, escrow.EventTypeEscrowCreated, map[string]string{"id": "bb", "buyer": "04", "seller": "01", "private": "true"})

	evts, err := store.EventsFor(id)
	require.NoError(t, err)
	require.Len(t, evts, 3)
	require.Equal(t, []uint64{1, 2, 3}, []uint64{evts[0].Seq, evts[1].Seq, evts[2].Seq})
	require.Equal(t, "1000", evts[0].Attributes["amount"])
	require.Equal(t, escrow.EventTypeEscrowResolved, evts[2].Type)

	records, err := store.EscrowsFor("01", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "bb", records[0].ID)
	require.True(t, records[0].Private)
	require.Equal(t, StatusOpen, records[0].Status)
	require.Equal(t, StatusResolved, records[1].Status)
	require.Equal(t, "refunded", records[1].Outcome)
	require.Equal(t, "03", records[1].Arbitrator)

	byArbitrator, err := store.EscrowsFor("03", 10)
	require.NoError(t, err)
	require.Len(t, byArbitrator, 1)
	require.Zero(t, store.Failed())
}

func TestStoreResumesSequence(t *testing.T) {
	store, db := setupTestStore(t)
	emit(store, escrow.EventTypeEscrowCreated, map[string]string{"id": "aa", "buyer": "01", "seller": "02"})
	emit(store, escrow.EventTypeVoteCast, map[string]string{"id": "aa", "voter": "01"})

	reopened, err := New(db, nil)
	require.NoError(t, err)
	emit(reopened, escrow.EventTypeVoteCast, map[string]string{"id": "aa", "voter": "02"})

	evts, err := reopened.EventsFor("aa")
	require.NoError(t, err)
	require.Len(t, evts, 3)
	require.Equal(t, uint64(3), evts[2].Seq)
}

func TestStoreCountsUnindexableEvents(t *testing.T) {
	store, _ := setupTestStore(t)
	store.Emit(bareEvent{})
	require.Equal(t, uint64(1), store.Failed())
	require.Error(t, store.Record(bareEvent{}))

	var _ events.Emitter = store
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ", nil)
	require.Error(t, err)
}
