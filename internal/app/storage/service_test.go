package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvatarKey(t *testing.T) {
	key, err := AvatarKey("u1", "image/png", 1024)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(key, "avatars/u1/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	_, err = AvatarKey("u1", "image/gif", 1024)
	require.NotNil(t, err)

	_, err = AvatarKey("u1", "image/png", MaxAvatarBytes+1)
	require.NotNil(t, err)

	_, err = AvatarKey("u1", "image/png", 0)
	require.NotNil(t, err)
}

func TestDocumentKey(t *testing.T) {
	key, err := DocumentKey("u1", "application/pdf", 4096)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(key, "documents/u1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	_, err = DocumentKey("u1", "application/zip", 4096)
	require.NotNil(t, err)

	_, err = DocumentKey("u1", "application/pdf", MaxDocumentBytes+1)
	require.NotNil(t, err)
}

func TestOwnsKey(t *testing.T) {
	assert.True(t, OwnsKey("u1", "avatars/u1/abc.png"))
	assert.True(t, OwnsKey("u1", "documents/u1/abc.pdf"))
	assert.False(t, OwnsKey("u1", "avatars/u2/abc.png"))
	assert.False(t, OwnsKey("u1", "documents/u2abc.pdf"))
	assert.False(t, OwnsKey("u1", "other/u1/abc.png"))
}
