package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "refward/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTrackingID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCodeID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseUserID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(valid), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety between
// ID kinds. If this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	userID := NewUserID()
	codeID := NewCodeID()

	// These would fail to compile if types were interchangeable:
	// var _ UserID = codeID   // compile error
	// var _ CodeID = userID   // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(codeID))
}

func TestMoney(t *testing.T) {
	t.Run("percent floors sub-cent remainders", func(t *testing.T) {
		m := NewMoney("USD", 333)
		// 30% of 3.33 is 0.999; floored to 0.99
		assert.Equal(t, int64(99), m.Percent(3000).Amount)
	})

	t.Run("add rejects currency mismatch", func(t *testing.T) {
		_, err := NewMoney("USD", 100).Add(NewMoney("EUR", 100))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("defaults currency", func(t *testing.T) {
		assert.Equal(t, DefaultCurrency, NewMoney("", 1).Currency)
	})

	t.Run("renders major units", func(t *testing.T) {
		assert.Equal(t, "USD 20.00", NewMoney("USD", 2000).String())
		assert.Equal(t, "USD 3.05", NewMoney("USD", 305).String())
	})
}

func TestIDJSONEncoding(t *testing.T) {
	t.Run("renders as a UUID string", func(t *testing.T) {
		userID := NewUserID()
		encoded, err := json.Marshal(userID)
		require.NoError(t, err)
		assert.Equal(t, `"`+userID.String()+`"`, string(encoded))
	})

	t.Run("round trips", func(t *testing.T) {
		trackingID := NewTrackingID()
		encoded, err := json.Marshal(trackingID)
		require.NoError(t, err)

		var decoded TrackingID
		require.NoError(t, json.Unmarshal(encoded, &decoded))
		assert.Equal(t, trackingID, decoded)
	})

	t.Run("rejects a malformed string", func(t *testing.T) {
		var decoded CodeID
		require.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &decoded))
	})
}
