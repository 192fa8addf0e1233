package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomIDShape(t *testing.T) {
	for range 100 {
		id, err := RoomID()
		require.NoError(t, err)
		assert.Len(t, id, RoomIDLength)

		for _, char := range id {
			assert.True(t, strings.ContainsRune(Base62Chars, char),
				"unexpected character %q in room id %q", char, id)
		}
	}
}

func TestRoomIDsAreNotConstant(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		id, err := RoomID()
		require.NoError(t, err)
		seen[id] = struct{}{}
	}

	assert.Greater(t, len(seen), 1)
}

func TestIsValidRoomID(t *testing.T) {
	assert.True(t, IsValidRoomID("abc123"))
	assert.True(t, IsValidRoomID("ZZZZZZ"))

	assert.False(t, IsValidRoomID(""))
	assert.False(t, IsValidRoomID("abc12"))
	assert.False(t, IsValidRoomID("abc1234"))
	assert.False(t, IsValidRoomID("abc12!"))
	assert.False(t, IsValidRoomID("abc 12"))
}

func TestRecordID(t *testing.T) {
	id := RecordID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, RecordID())
}
