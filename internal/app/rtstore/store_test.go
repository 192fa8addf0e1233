package rtstore

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestWriteReadDelete(t *testing.T) {
	store := newTestStore(t)

	err := store.Write("rooms/abc123", map[string]any{"name": "Standup", "maxMembers": 4})
	require.NoError(t, err)

	var room struct {
		Name       string `json:"name"`
		MaxMembers int    `json:"maxMembers"`
	}
	exists, err := store.ReadInto("rooms/abc123", &room)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "Standup", room.Name)
	assert.Equal(t, 4, room.MaxMembers)

	err = store.Delete("rooms/abc123")
	require.NoError(t, err)

	_, exists, err = store.Read("rooms/abc123")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReadAssemblesSubtree(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123", map[string]any{"name": "Standup"}))
	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.Write("rooms/abc123/participants/u2", map[string]any{"displayName": "Ben"}))

	raw, exists, err := store.Read("rooms/abc123")
	require.NoError(t, err)
	require.True(t, exists)

	var room map[string]any
	require.NoError(t, json.Unmarshal(raw, &room))

	assert.Equal(t, "Standup", room["name"])
	participants, ok := room["participants"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, participants, 2)
}

func TestDeleteCascadesSubtree(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123", map[string]any{"name": "Standup"}))
	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.Write("rooms/abc123/messages/m1", map[string]any{"content": "hi"}))

	require.NoError(t, store.Delete("rooms/abc123"))

	for _, path := range []string{"rooms/abc123", "rooms/abc123/participants/u1", "rooms/abc123/messages/m1"} {
		_, exists, err := store.Read(path)
		require.NoError(t, err)
		assert.False(t, exists, "expected %s to be gone", path)
	}
}

func TestUpdateMergesShallow(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("users/u1", map[string]any{"displayName": "Ann", "credits": 50}))
	require.NoError(t, store.Update("users/u1", map[string]any{"credits": 48}))

	var user struct {
		DisplayName string `json:"displayName"`
		Credits     int    `json:"credits"`
	}
	exists, err := store.ReadInto("users/u1", &user)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "Ann", user.DisplayName)
	assert.Equal(t, 48, user.Credits)
}

func TestUpdateMissingDocumentCreatesIt(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Update("users/u1", map[string]any{"credits": 50}))

	var user struct {
		Credits int `json:"credits"`
	}
	exists, err := store.ReadInto("users/u1", &user)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, 50, user.Credits)
}

func TestAppendKeysAreMonotonic(t *testing.T) {
	store := newTestStore(t)

	keys := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		key, err := store.Append("rooms/abc123/messages", map[string]any{"seq": i})
		require.NoError(t, err)
		keys = append(keys, key)
	}

	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i])
	}
}

func TestAppendReadBackOrder(t *testing.T) {
	store := newTestStore(t)

	for _, content := range []string{"m1", "m2", "m3"} {
		_, err := store.Append("rooms/abc123/messages", map[string]any{"content": content})
		require.NoError(t, err)
	}

	raw, exists, err := store.Read("rooms/abc123/messages")
	require.NoError(t, err)
	require.True(t, exists)

	var messages map[string]struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &messages))
	require.Len(t, messages, 3)

	// Keys sort in generation order, so iterating sorted keys yields send order.
	keys := make([]string, 0, len(messages))
	for key := range messages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ordered := make([]string, 0, 3)
	for _, key := range keys {
		ordered = append(ordered, messages[key].Content)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ordered)
}

func TestServerTimestampResolved(t *testing.T) {
	store := newTestStore(t)

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	err := store.Write("rooms/abc123/messages/m1", map[string]any{
		"content":   "hello",
		"timestamp": ServerTimestamp,
	})
	require.NoError(t, err)

	var message struct {
		Content   string `json:"content"`
		Timestamp int64  `json:"timestamp"`
	}
	exists, err := store.ReadInto("rooms/abc123/messages/m1", &message)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, fixed.UnixMilli(), message.Timestamp)
}

func TestTransact(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("users/u1", map[string]any{"credits": 10}))

	err := store.Transact("users/u1", func(current json.RawMessage) (any, error) {
		var user map[string]any
		require.NoError(t, json.Unmarshal(current, &user))
		user["credits"] = 8
		return user, nil
	})
	require.NoError(t, err)

	var user struct {
		Credits int `json:"credits"`
	}
	exists, err := store.ReadInto("users/u1", &user)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, 8, user.Credits)
}

func TestTransactNilDeletes(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("users/u1", map[string]any{"credits": 10}))

	err := store.Transact("users/u1", func(json.RawMessage) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	_, exists, err := store.Read("users/u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTransactErrorRollsBack(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("users/u1", map[string]any{"credits": 10}))

	err := store.RunUpdate(func(tx *Tx) error {
		if writeErr := tx.Write("users/u1", map[string]any{"credits": 0}); writeErr != nil {
			return writeErr
		}
		return assert.AnError
	})
	require.Error(t, err)

	var user struct {
		Credits int `json:"credits"`
	}
	exists, err := store.ReadInto("users/u1", &user)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, 10, user.Credits)
}

func TestCountChildren(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.Write("rooms/abc123/participants/u2", map[string]any{"displayName": "Ben"}))

	err := store.RunUpdate(func(tx *Tx) error {
		count, countErr := tx.CountChildren("rooms/abc123/participants")
		if countErr != nil {
			return countErr
		}
		assert.Equal(t, 2, count)
		return nil
	})
	require.NoError(t, err)
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123", map[string]any{"name": "Standup"}))

	events, cancel, err := store.Subscribe("rooms/abc123")
	require.NoError(t, err)
	defer cancel()

	initial := <-events
	require.True(t, initial.Exists)
	assert.Contains(t, string(initial.Value), "Standup")

	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))

	next := <-events
	require.True(t, next.Exists)
	assert.Contains(t, string(next.Value), "Ann")
}

func TestSubscribeSeesDeletion(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123", map[string]any{"name": "Standup"}))

	events, cancel, err := store.Subscribe("rooms/abc123")
	require.NoError(t, err)
	defer cancel()

	<-events

	require.NoError(t, store.Delete("rooms/abc123"))

	gone := <-events
	assert.False(t, gone.Exists)
	assert.Nil(t, gone.Value)
}

func TestSubscribeUnrelatedPathIgnored(t *testing.T) {
	store := newTestStore(t)

	events, cancel, err := store.Subscribe("rooms/abc123")
	require.NoError(t, err)
	defer cancel()

	<-events

	require.NoError(t, store.Write("rooms/zzz999", map[string]any{"name": "Other"}))

	select {
	case event := <-events:
		t.Fatalf("unexpected event for unrelated path: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnectCleanup(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.ArmDisconnectCleanup("conn-1", "rooms/abc123/participants/u1"))

	store.FireDisconnect("conn-1")

	_, exists, err := store.Read("rooms/abc123/participants/u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDisarmCancelsCleanup(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.ArmDisconnectCleanup("conn-1", "rooms/abc123/participants/u1"))
	store.DisarmDisconnectCleanup("conn-1", "rooms/abc123/participants/u1")

	store.FireDisconnect("conn-1")

	_, exists, err := store.Read("rooms/abc123/participants/u1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRearmTransfersCleanupOwnership(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.ArmDisconnectCleanup("conn-1", "rooms/abc123/participants/u1"))

	// A newer connection arms the same path; the old connection's teardown
	// must not delete state the new connection now owns.
	require.NoError(t, store.ArmDisconnectCleanup("conn-2", "rooms/abc123/participants/u1"))

	store.FireDisconnect("conn-1")

	_, exists, err := store.Read("rooms/abc123/participants/u1")
	require.NoError(t, err)
	assert.True(t, exists)

	store.FireDisconnect("conn-2")

	_, exists, err = store.Read("rooms/abc123/participants/u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRearmKeepsOtherPathsArmed(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Write("rooms/abc123/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.Write("rooms/xyz789/participants/u1", map[string]any{"displayName": "Ann"}))
	require.NoError(t, store.ArmDisconnectCleanup("conn-1", "rooms/abc123/participants/u1"))
	require.NoError(t, store.ArmDisconnectCleanup("conn-1", "rooms/xyz789/participants/u1"))

	// Ownership transfer is per path: only the rearmed path moves.
	require.NoError(t, store.ArmDisconnectCleanup("conn-2", "rooms/abc123/participants/u1"))

	store.FireDisconnect("conn-1")

	_, exists, err := store.Read("rooms/abc123/participants/u1")
	require.NoError(t, err)
	assert.True(t, exists)

	_, exists, err = store.Read("rooms/xyz789/participants/u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNormalizePathRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{name: "empty", path: ""},
		{name: "only slashes", path: "///"},
		{name: "empty segment", path: "rooms//abc"},
		{name: "wildcard", path: "rooms/ab*c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizePath(tc.path)
			assert.Error(t, err)
		})
	}
}
