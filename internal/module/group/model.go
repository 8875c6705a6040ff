package group

import (
	"time"

	"github.com/google/uuid"
)

// Group is a shared expense pool.
type Group struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"not null"`
	CreatorID uuid.UUID `json:"creator_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Members []Member `json:"members,omitempty" gorm:"foreignKey:GroupID"`
}

// TableName returns the database table name.
func (Group) TableName() string {
	return "groups"
}

// Member is a participant in a group. Members start unlinked: they are
// placeholder names until a registered account claims them.
type Member struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	GroupID      uuid.UUID  `json:"group_id" gorm:"type:uuid;not null;index"`
	Name         string     `json:"name" gorm:"not null"`
	LinkedUserID *uuid.UUID `json:"linked_user_id,omitempty" gorm:"type:uuid"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName returns the database table name.
func (Member) TableName() string {
	return "group_members"
}

// IsLinked returns true if a registered account has claimed this member.
func (m *Member) IsLinked() bool {
	return m.LinkedUserID != nil
}

// Expense is a payment made by one member on behalf of the group.
// Amounts are stored in cents.
type Expense struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	GroupID        uuid.UUID `json:"group_id" gorm:"type:uuid;not null;index"`
	PaidByMemberID uuid.UUID `json:"paid_by_member_id" gorm:"type:uuid;not null;index"`
	Description    string    `json:"description" gorm:"not null"`
	AmountCents    int64     `json:"amount_cents" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`

	Shares []ExpenseShare `json:"shares,omitempty" gorm:"foreignKey:ExpenseID"`
}

// TableName returns the database table name.
func (Expense) TableName() string {
	return "expenses"
}

// ExpenseShare is one member's portion of an expense.
type ExpenseShare struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ExpenseID   uuid.UUID `json:"expense_id" gorm:"type:uuid;not null;index"`
	MemberID    uuid.UUID `json:"member_id" gorm:"type:uuid;not null;index"`
	AmountCents int64     `json:"amount_cents" gorm:"not null"`
}

// TableName returns the database table name.
func (ExpenseShare) TableName() string {
	return "expense_shares"
}

// MemberActivity aggregates a member's financial history within their group.
type MemberActivity struct {
	PaidCents    int64
	OwedCents    int64
	ExpenseCount int
	LastActivity *time.Time
}

// NetBalanceCents returns what the group owes the member (negative when the
// member owes the group).
func (a MemberActivity) NetBalanceCents() int64 {
	return a.PaidCents - a.OwedCents
}
