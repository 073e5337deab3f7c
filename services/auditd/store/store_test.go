package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"corebtc/core/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	s, err := New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func lockerEvent(eventType, locker string) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{"locker": locker, "amount": "5"}}
}

func TestAppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	first, err := s.Append(ctx, lockerEvent("lockers.requested", "0xb1"), at)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Sequence)
	_, err = s.Append(ctx, lockerEvent("lockers.added", "0xb1"), at)
	require.NoError(t, err)
	_, err = s.Append(ctx, lockerEvent("lockers.requested", "0xb2"), at)
	require.NoError(t, err)
	require.Equal(t, uint64(3), s.LastSequence())

	all, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint64(1), all[0].Sequence)

	requested, err := s.Query(ctx, Filter{Type: "lockers.requested"})
	require.NoError(t, err)
	require.Len(t, requested, 2)

	byLocker, err := s.Query(ctx, Filter{Locker: "0xb1", AfterSequence: 1})
	require.NoError(t, err)
	require.Len(t, byLocker, 1)
	require.Equal(t, "lockers.added", byLocker[0].Type)

	decoded, err := byLocker[0].Decoded()
	require.NoError(t, err)
	require.Equal(t, "5", decoded.Attr("amount"))

	limited, err := s.Query(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	counts, err := s.CountByType(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"lockers.requested": 2, "lockers.added": 1}, counts)
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	s, err := New(db)
	require.NoError(t, err)
	_, err = s.Append(context.Background(), lockerEvent("lockers.minted", "0xb1"), time.Now())
	require.NoError(t, err)

	reopened, err := New(db)
	require.NoError(t, err)
	require.Equal(t, uint64(1), reopened.LastSequence())
}

func TestSinkPersistsAndPublishes(t *testing.T) {
	s := openTestStore(t)
	hub := NewHub(4)
	sink := NewSink(s, hub, nil)
	fixed := time.Unix(1_700_000_100, 0)
	sink.SetNowFunc(func() time.Time { return fixed })

	updates, cancel := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	sink.Emit(lockerEvent("lockers.liquidated", "0xb1"))
	select {
	case record := <-updates:
		require.Equal(t, "lockers.liquidated", record.Type)
		require.Equal(t, "0xb1", record.Locker)
		require.True(t, record.CreatedAt.Equal(fixed))
	case <-time.After(time.Second):
		t.Fatal("expected published record")
	}

	cancel()
	cancel()
	require.Zero(t, hub.Subscribers())
	_, open := <-updates
	require.False(t, open)

	stored, err := s.Query(context.Background(), Filter{Type: "lockers.liquidated"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub(1)
	updates, cancel := hub.Subscribe()
	defer cancel()
	hub.Publish(EventRecord{Sequence: 1})
	hub.Publish(EventRecord{Sequence: 2})
	require.Equal(t, uint64(1), (<-updates).Sequence)
	select {
	case record := <-updates:
		t.Fatalf("unexpected record %d", record.Sequence)
	default:
	}
}
