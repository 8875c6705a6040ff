package linking

import (
	"time"

	"github.com/google/uuid"
)

// GenerateTokenRequest represents a request to create an invite token.
type GenerateTokenRequest struct {
	TargetMemberID   uuid.UUID `json:"target_member_id" binding:"required"`
	TargetMemberName string    `json:"target_member_name" binding:"required,min=1,max=100"`
}

// TokenResponse represents an invite token in API responses.
type TokenResponse struct {
	ID               string     `json:"id"`
	TargetMemberID   uuid.UUID  `json:"target_member_id"`
	TargetMemberName string     `json:"target_member_name"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	Claimed          bool       `json:"claimed"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
}

// ToResponse converts an InviteToken to a TokenResponse.
func (t *InviteToken) ToResponse() *TokenResponse {
	return &TokenResponse{
		ID:               t.ID,
		TargetMemberID:   t.TargetMemberID,
		TargetMemberName: t.TargetMemberName,
		CreatedAt:        t.CreatedAt,
		ExpiresAt:        t.ExpiresAt,
		Claimed:          t.IsClaimed(),
		ClaimedAt:        t.ClaimedAt,
	}
}

// ValidateTokenResponse represents the outcome of a token validation.
type ValidateTokenResponse struct {
	Valid    bool            `json:"valid"`
	Token    *TokenResponse  `json:"token,omitempty"`
	Preview  *HistoryPreview `json:"preview,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Message  string          `json:"message,omitempty"`
	Recovery string          `json:"recovery,omitempty"`
}

// ToResponse converts a ValidationResult to a ValidateTokenResponse.
func (v *ValidationResult) ToResponse() *ValidateTokenResponse {
	resp := &ValidateTokenResponse{
		Valid:   v.Valid,
		Preview: v.Preview,
	}
	if v.Token != nil {
		resp.Token = v.Token.ToResponse()
	}
	if v.Reason != nil {
		resp.Reason = string(v.Reason.Kind)
		resp.Message = v.Reason.Message
		resp.Recovery = v.Reason.Recovery
	}
	return resp
}

// CreateLinkRequestRequest represents a request to create a link request.
type CreateLinkRequestRequest struct {
	RecipientEmail   string    `json:"recipient_email" binding:"required,email"`
	TargetMemberID   uuid.UUID `json:"target_member_id" binding:"required"`
	TargetMemberName string    `json:"target_member_name" binding:"required,min=1,max=100"`
}

// LinkRequestResponse represents a link request in API responses.
type LinkRequestResponse struct {
	ID               uuid.UUID     `json:"id"`
	RequesterName    string        `json:"requester_name"`
	RequesterEmail   string        `json:"requester_email"`
	RecipientEmail   string        `json:"recipient_email"`
	TargetMemberID   uuid.UUID     `json:"target_member_id"`
	TargetMemberName string        `json:"target_member_name"`
	Status           RequestStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// ToResponse converts a LinkRequest to a LinkRequestResponse.
func (r *LinkRequest) ToResponse() *LinkRequestResponse {
	return &LinkRequestResponse{
		ID:               r.ID,
		RequesterName:    r.RequesterName,
		RequesterEmail:   r.RequesterEmail,
		RecipientEmail:   r.RecipientEmail,
		TargetMemberID:   r.TargetMemberID,
		TargetMemberName: r.TargetMemberName,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        r.ExpiresAt,
	}
}

// toResponses converts a slice of link requests.
func toResponses(reqs []*LinkRequest) []*LinkRequestResponse {
	out := make([]*LinkRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ToResponse())
	}
	return out
}
