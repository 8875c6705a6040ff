package events

import "github.com/google/uuid"

// Linking event type constants.
const (
	MemberLinkedType = "MemberLinked"
)

// MemberLinkedEvent is emitted when a group member becomes linked to a
// registered account, via an invite token claim or an accepted link request.
// This is defined in the events package to avoid cyclic imports.
type MemberLinkedEvent struct {
	BaseEvent

	// MemberID is the group member that was linked.
	MemberID uuid.UUID `json:"member_id"`

	// UserID is the account the member was linked to.
	UserID uuid.UUID `json:"user_id"`
}

// NewMemberLinkedEvent creates a new MemberLinkedEvent.
func NewMemberLinkedEvent(memberID, userID uuid.UUID) *MemberLinkedEvent {
	return &MemberLinkedEvent{
		BaseEvent: NewBaseEvent(MemberLinkedType, memberID, "Member"),
		MemberID:  memberID,
		UserID:    userID,
	}
}
