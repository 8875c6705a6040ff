package group

import "time"

// CreateGroupRequest represents a group creation request.
type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	MemberName  string   `json:"member_name" binding:"required"`
	MemberNames []string `json:"member_names"`
}

// AddMemberRequest represents an add-member request.
type AddMemberRequest struct {
	Name string `json:"name" binding:"required"`
}

// RecordExpenseRequest represents an expense creation request.
type RecordExpenseRequest struct {
	PaidByMemberID string `json:"paid_by_member_id" binding:"required,uuid"`
	Description    string `json:"description" binding:"required"`
	AmountCents    int64  `json:"amount_cents" binding:"required,gt=0"`
}

// MemberResponse represents a member in API responses.
type MemberResponse struct {
	ID           string  `json:"id"`
	GroupID      string  `json:"group_id"`
	Name         string  `json:"name"`
	LinkedUserID *string `json:"linked_user_id,omitempty"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatorID string           `json:"creator_id"`
	CreatedAt time.Time        `json:"created_at"`
	Members   []MemberResponse `json:"members,omitempty"`
}

// ExpenseShareResponse represents an expense share in API responses.
type ExpenseShareResponse struct {
	MemberID    string `json:"member_id"`
	AmountCents int64  `json:"amount_cents"`
}

// ExpenseResponse represents an expense in API responses.
type ExpenseResponse struct {
	ID             string                 `json:"id"`
	GroupID        string                 `json:"group_id"`
	PaidByMemberID string                 `json:"paid_by_member_id"`
	Description    string                 `json:"description"`
	AmountCents    int64                  `json:"amount_cents"`
	CreatedAt      time.Time              `json:"created_at"`
	Shares         []ExpenseShareResponse `json:"shares,omitempty"`
}

// ToResponse converts a member to its API representation.
func (m *Member) ToResponse() MemberResponse {
	resp := MemberResponse{
		ID:      m.ID.String(),
		GroupID: m.GroupID.String(),
		Name:    m.Name,
	}
	if m.LinkedUserID != nil {
		id := m.LinkedUserID.String()
		resp.LinkedUserID = &id
	}
	return resp
}

// ToResponse converts a group to its API representation.
func (g *Group) ToResponse() GroupResponse {
	resp := GroupResponse{
		ID:        g.ID.String(),
		Name:      g.Name,
		CreatorID: g.CreatorID.String(),
		CreatedAt: g.CreatedAt,
	}
	for i := range g.Members {
		resp.Members = append(resp.Members, g.Members[i].ToResponse())
	}
	return resp
}

// ToResponse converts an expense to its API representation.
func (e *Expense) ToResponse() ExpenseResponse {
	resp := ExpenseResponse{
		ID:             e.ID.String(),
		GroupID:        e.GroupID.String(),
		PaidByMemberID: e.PaidByMemberID.String(),
		Description:    e.Description,
		AmountCents:    e.AmountCents,
		CreatedAt:      e.CreatedAt,
	}
	for _, s := range e.Shares {
		resp.Shares = append(resp.Shares, ExpenseShareResponse{
			MemberID:    s.MemberID.String(),
			AmountCents: s.AmountCents,
		})
	}
	return resp
}
