// Package domain holds shared domain primitives: typed identifiers and
// monetary values. Typed UUID wrappers prevent cross-type assignment at
// compile time, so a TrackingID can never be passed where a CodeID is
// expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "refward/pkg/domain-errors"
)

// Typed identifiers for the engine's aggregates.
type (
	// UserID identifies a user, whether acting as referrer or referee.
	UserID uuid.UUID

	// CodeID identifies a referral code.
	CodeID uuid.UUID

	// TrackingID identifies a tracking record (one attributed click).
	TrackingID uuid.UUID

	// RelationshipID identifies a referrer→referee edge.
	RelationshipID uuid.UUID

	// EarningID identifies one monetary line item.
	EarningID uuid.UUID

	// CampaignID identifies a marketing campaign a code belongs to.
	CampaignID uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id CodeID) String() string         { return uuid.UUID(id).String() }
func (id TrackingID) String() string     { return uuid.UUID(id).String() }
func (id RelationshipID) String() string { return uuid.UUID(id).String() }
func (id EarningID) String() string      { return uuid.UUID(id).String() }
func (id CampaignID) String() string     { return uuid.UUID(id).String() }

// Defined types do not inherit uuid.UUID's encoding methods, so each ID
// implements encoding.TextMarshaler explicitly; without these the IDs would
// serialize as raw byte arrays in JSON payloads.
func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id CodeID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id TrackingID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id RelationshipID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EarningID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id CampaignID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = UserID(u)
	return err
}

func (id *CodeID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = CodeID(u)
	return err
}

func (id *TrackingID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = TrackingID(u)
	return err
}

func (id *RelationshipID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = RelationshipID(u)
	return err
}

func (id *EarningID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = EarningID(u)
	return err
}

func (id *CampaignID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = CampaignID(u)
	return err
}

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CodeID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id TrackingID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RelationshipID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EarningID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CampaignID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// NewUserID mints a fresh user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewCodeID mints a fresh code identifier.
func NewCodeID() CodeID { return CodeID(uuid.New()) }

// NewTrackingID mints a fresh tracking identifier.
func NewTrackingID() TrackingID { return TrackingID(uuid.New()) }

// NewRelationshipID mints a fresh relationship identifier.
func NewRelationshipID() RelationshipID { return RelationshipID(uuid.New()) }

// NewEarningID mints a fresh earning identifier.
func NewEarningID() EarningID { return EarningID(uuid.New()) }

// NewCampaignID mints a fresh campaign identifier.
func NewCampaignID() CampaignID { return CampaignID(uuid.New()) }

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", kind)
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseCodeID validates and returns a CodeID.
func ParseCodeID(s string) (CodeID, error) {
	u, err := parseUUID(s, "code id")
	return CodeID(u), err
}

// ParseTrackingID validates and returns a TrackingID.
func ParseTrackingID(s string) (TrackingID, error) {
	u, err := parseUUID(s, "tracking id")
	return TrackingID(u), err
}

// ParseRelationshipID validates and returns a RelationshipID.
func ParseRelationshipID(s string) (RelationshipID, error) {
	u, err := parseUUID(s, "relationship id")
	return RelationshipID(u), err
}

// ParseEarningID validates and returns an EarningID.
func ParseEarningID(s string) (EarningID, error) {
	u, err := parseUUID(s, "earning id")
	return EarningID(u), err
}

// ParseCampaignID validates and returns a CampaignID.
func ParseCampaignID(s string) (CampaignID, error) {
	u, err := parseUUID(s, "campaign id")
	return CampaignID(u), err
}
