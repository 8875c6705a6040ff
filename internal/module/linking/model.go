package linking

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the status of a link request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusExpired  RequestStatus = "expired"
)

// Identity is the authenticated caller as supplied by the identity provider.
type Identity struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// InviteToken is a single-use capability to claim a group member. The ID
// doubles as the bearer token.
type InviteToken struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	CreatorID        uuid.UUID  `json:"creator_id" gorm:"type:uuid;not null"`
	CreatorEmail     string     `json:"creator_email" gorm:"not null"`
	TargetMemberID   uuid.UUID  `json:"target_member_id" gorm:"type:uuid;not null"`
	TargetMemberName string     `json:"target_member_name" gorm:"not null"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at" gorm:"not null"`
	ClaimedBy        *uuid.UUID `json:"claimed_by,omitempty" gorm:"type:uuid"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
}

// TableName returns the database table name.
func (InviteToken) TableName() string {
	return "invite_tokens"
}

// IsClaimed returns true if the token has been claimed.
func (t *InviteToken) IsClaimed() bool {
	return t.ClaimedBy != nil
}

// IsExpired returns true if the token is past its expiry at the given time.
func (t *InviteToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// LinkRequest is a directed invitation from a requester to a recipient email,
// targeting a specific group member.
type LinkRequest struct {
	ID               uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	RequesterID      uuid.UUID     `json:"requester_id" gorm:"type:uuid;not null"`
	RequesterEmail   string        `json:"requester_email" gorm:"not null"`
	RequesterName    string        `json:"requester_name" gorm:"not null"`
	RecipientEmail   string        `json:"recipient_email" gorm:"not null;index"`
	TargetMemberID   uuid.UUID     `json:"target_member_id" gorm:"type:uuid;not null"`
	TargetMemberName string        `json:"target_member_name" gorm:"not null"`
	CreatedAt        time.Time     `json:"created_at"`
	Status           RequestStatus `json:"status" gorm:"not null;default:pending"`
	ExpiresAt        time.Time     `json:"expires_at" gorm:"not null"`
	RejectedAt       *time.Time    `json:"rejected_at,omitempty"`
}

// TableName returns the database table name.
func (LinkRequest) TableName() string {
	return "link_requests"
}

// IsPending returns true if the request is still pending.
func (r *LinkRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// IsExpired returns true if the request is past its expiry at the given time.
func (r *LinkRequest) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// LinkAcceptResult is the projection returned by a successful claim or accept.
type LinkAcceptResult struct {
	LinkedMemberID     uuid.UUID `json:"linked_member_id"`
	LinkedAccountID    uuid.UUID `json:"linked_account_id"`
	LinkedAccountEmail string    `json:"linked_account_email"`
}

// Member is a minimal view of a group member for link mutations.
type Member struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	GroupID      uuid.UUID  `json:"group_id" gorm:"type:uuid;not null"`
	Name         string     `json:"name"`
	LinkedUserID *uuid.UUID `json:"linked_user_id,omitempty" gorm:"type:uuid"`
}

// TableName returns the database table name.
func (Member) TableName() string {
	return "group_members"
}

// HistoryPreview summarizes the shared financial history of a member,
// shown to a claimant before they accept. Best-effort: absence never
// invalidates a token.
type HistoryPreview struct {
	MemberName   string     `json:"member_name"`
	GroupName    string     `json:"group_name"`
	ExpenseCount int        `json:"expense_count"`
	NetBalance   int64      `json:"net_balance_cents"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}
