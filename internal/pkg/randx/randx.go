/*
Package randx provides cryptographically secure random identifiers.

It generates the short Base62 room ids shared between teammates and
standard UUIDs for records that never leave the server unprefixed.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the number of characters in the Base62 set.
	Base62Len = int64(len(Base62Chars))

	// RoomIDLength is the fixed length of generated room ids. Short enough to
	// read out loud, collision-checked only by store uniqueness.
	RoomIDLength = 6
)

// RoomID generates a Base62 room id of RoomIDLength characters using crypto/rand.
func RoomID() (string, error) {
	result := make([]byte, RoomIDLength)

	for i := range RoomIDLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room id: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// IsValidRoomID reports whether the given string has the shape of a room id:
// exactly RoomIDLength characters, all from the Base62 set.
func IsValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// RecordID generates a UUID v4 string for server-side record identifiers.
func RecordID() string {
	return uuid.New().String()
}
