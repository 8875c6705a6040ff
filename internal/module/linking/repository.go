package linking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository defines the interface for invite token persistence. It is
// the only component that mutates invite tokens; Claim must be atomic so that
// of N concurrent claimants exactly one succeeds.
type TokenRepository interface {
	Create(ctx context.Context, token *InviteToken) error
	Get(ctx context.Context, id string) (*InviteToken, error)
	Claim(ctx context.Context, id string, claimant Identity, now time.Time) (*LinkAcceptResult, error)
	Revoke(ctx context.Context, id string, requesterID uuid.UUID) error
}

// RequestRepository defines the interface for link request persistence.
// Accept carries the same conditional-transition discipline as token claims.
type RequestRepository interface {
	Create(ctx context.Context, req *LinkRequest) error
	Get(ctx context.Context, id uuid.UUID) (*LinkRequest, error)
	FindPending(ctx context.Context, requesterID uuid.UUID, requesterEmail, recipientEmail string, targetMemberID uuid.UUID) (*LinkRequest, error)
	Incoming(ctx context.Context, recipientEmail string, now time.Time) ([]*LinkRequest, error)
	Outgoing(ctx context.Context, requesterID uuid.UUID, now time.Time) ([]*LinkRequest, error)
	Previous(ctx context.Context, recipientEmail string) ([]*LinkRequest, error)
	Accept(ctx context.Context, id uuid.UUID, acceptor Identity, now time.Time) (*LinkAcceptResult, error)
	Decline(ctx context.Context, id uuid.UUID, acceptor Identity, now time.Time) error
	Cancel(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error
}

// tokenRepository implements TokenRepository using GORM.
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository.
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Create persists a new invite token.
func (r *tokenRepository) Create(ctx context.Context, token *InviteToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// Get retrieves a token by id.
func (r *tokenRepository) Get(ctx context.Context, id string) (*InviteToken, error) {
	var token InviteToken
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalid
		}
		return nil, err
	}
	return &token, nil
}

// Claim transitions a token from unclaimed to claimed. The commit is guarded
// by a conditional update (claimed_by IS NULL AND expires_at > now) so the
// database serializes racing claimants; losers observe ErrAlreadyClaimed.
func (r *tokenRepository) Claim(ctx context.Context, id string, claimant Identity, now time.Time) (*LinkAcceptResult, error) {
	var result *LinkAcceptResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token InviteToken
		if err := tx.Where("id = ?", id).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalid
			}
			return err
		}
		if token.IsExpired(now) {
			return ErrExpired
		}
		if token.IsClaimed() {
			return ErrAlreadyClaimed
		}

		// The CAS on the token runs before linkMember so racing losers
		// observe AlreadyClaimed, not the member-link state the winner
		// left behind.
		res := tx.Model(&InviteToken{}).
			Where("id = ? AND claimed_by IS NULL AND expires_at > ?", id, now).
			Updates(map[string]interface{}{
				"claimed_by": claimant.ID,
				"claimed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another claimant committed between the read and the guard.
			return ErrAlreadyClaimed
		}

		if err := linkMember(tx, token.TargetMemberID, claimant.ID); err != nil {
			return err
		}

		result = &LinkAcceptResult{
			LinkedMemberID:     token.TargetMemberID,
			LinkedAccountID:    claimant.ID,
			LinkedAccountEmail: claimant.Email,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Revoke deletes an unclaimed token. Only the creator may revoke.
func (r *tokenRepository) Revoke(ctx context.Context, id string, requesterID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token InviteToken
		if err := tx.Where("id = ?", id).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalid
			}
			return err
		}
		if token.CreatorID != requesterID {
			return ErrUnauthorized
		}

		res := tx.Where("id = ? AND claimed_by IS NULL", id).Delete(&InviteToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}
		return nil
	})
}

// requestRepository implements RequestRepository using GORM.
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new link request repository.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

// Create persists a new link request.
func (r *requestRepository) Create(ctx context.Context, req *LinkRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Get retrieves a link request by id.
func (r *requestRepository) Get(ctx context.Context, id uuid.UUID) (*LinkRequest, error) {
	var req LinkRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalid
		}
		return nil, err
	}
	return &req, nil
}

// FindPending looks for a pending request with the same requester, recipient
// and target member. Returns nil when none exists.
func (r *requestRepository) FindPending(ctx context.Context, requesterID uuid.UUID, requesterEmail, recipientEmail string, targetMemberID uuid.UUID) (*LinkRequest, error) {
	var req LinkRequest
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? OR requester_email = ?) AND recipient_email = ? AND target_member_id = ? AND status = ?",
			requesterID, requesterEmail, recipientEmail, targetMemberID, RequestStatusPending).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Incoming lists pending, unexpired requests addressed to the given email.
func (r *requestRepository) Incoming(ctx context.Context, recipientEmail string, now time.Time) ([]*LinkRequest, error) {
	var reqs []*LinkRequest
	err := r.db.WithContext(ctx).
		Where("recipient_email = ? AND status = ? AND expires_at > ?", recipientEmail, RequestStatusPending, now).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// Outgoing lists pending, unexpired requests created by the given user.
func (r *requestRepository) Outgoing(ctx context.Context, requesterID uuid.UUID, now time.Time) ([]*LinkRequest, error) {
	var reqs []*LinkRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ? AND expires_at > ?", requesterID, RequestStatusPending, now).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// Previous lists resolved requests addressed to the given email.
func (r *requestRepository) Previous(ctx context.Context, recipientEmail string) ([]*LinkRequest, error) {
	var reqs []*LinkRequest
	err := r.db.WithContext(ctx).
		Where("recipient_email = ? AND status IN ?", recipientEmail,
			[]RequestStatus{RequestStatusAccepted, RequestStatusDeclined, RequestStatusRejected}).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// Accept transitions a request to accepted and links the member. A declined
// request may still be accepted; any other resolved state is a conflict.
func (r *requestRepository) Accept(ctx context.Context, id uuid.UUID, acceptor Identity, now time.Time) (*LinkAcceptResult, error) {
	var result *LinkAcceptResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req LinkRequest
		if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalid
			}
			return err
		}
		if req.RecipientEmail != acceptor.Email {
			return ErrUnauthorized
		}
		if req.IsExpired(now) {
			return ErrExpired
		}
		if req.Status != RequestStatusPending && req.Status != RequestStatusDeclined {
			return ErrAlreadyClaimed
		}

		// Status CAS first, linkMember second; see Claim.
		res := tx.Model(&LinkRequest{}).
			Where("id = ? AND status IN ?", id, []RequestStatus{RequestStatusPending, RequestStatusDeclined}).
			Update("status", RequestStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		if err := linkMember(tx, req.TargetMemberID, acceptor.ID); err != nil {
			return err
		}

		result = &LinkAcceptResult{
			LinkedMemberID:     req.TargetMemberID,
			LinkedAccountID:    acceptor.ID,
			LinkedAccountEmail: acceptor.Email,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Decline transitions a pending request to declined and records when.
func (r *requestRepository) Decline(ctx context.Context, id uuid.UUID, acceptor Identity, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req LinkRequest
		if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalid
			}
			return err
		}
		if req.RecipientEmail != acceptor.Email {
			return ErrUnauthorized
		}
		if req.IsExpired(now) {
			return ErrExpired
		}

		res := tx.Model(&LinkRequest{}).
			Where("id = ? AND status = ?", id, RequestStatusPending).
			Updates(map[string]interface{}{
				"status":      RequestStatusDeclined,
				"rejected_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}
		return nil
	})
}

// Cancel deletes a request. Only the original requester may cancel; the
// record is removed rather than transitioned.
func (r *requestRepository) Cancel(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req LinkRequest
		if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalid
			}
			return err
		}
		if req.RequesterID != requesterID {
			return ErrUnauthorized
		}

		return tx.Where("id = ?", id).Delete(&LinkRequest{}).Error
	})
}

// linkMember binds a member record to a user account, enforcing the
// one-account-one-member invariant within the surrounding transaction.
func linkMember(tx *gorm.DB, memberID, userID uuid.UUID) error {
	var member Member
	if err := tx.Where("id = ?", memberID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalid
		}
		return err
	}
	if member.LinkedUserID != nil {
		return ErrMemberAlreadyLinked
	}

	var count int64
	err := tx.Model(&Member{}).
		Where("group_id = ? AND linked_user_id = ? AND id <> ?", member.GroupID, userID, memberID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAccountAlreadyLinked
	}

	res := tx.Model(&Member{}).
		Where("id = ? AND linked_user_id IS NULL", memberID).
		Update("linked_user_id", userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberAlreadyLinked
	}
	return nil
}
