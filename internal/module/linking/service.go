package linking

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splitmate/server/internal/shared/events"
	"github.com/splitmate/server/internal/utils/random"
)

// IdentityProvider resolves the currently authenticated caller. It must fail
// with ErrUnauthorized when no session exists.
type IdentityProvider interface {
	Identity(ctx context.Context) (Identity, error)
}

// PreviewProvider produces a best-effort summary of the shared financial
// history for a member. Errors degrade to a nil preview.
type PreviewProvider interface {
	Preview(ctx context.Context, memberID uuid.UUID) (*HistoryPreview, error)
}

// ValidationResult is the outcome of a read-only token validation.
type ValidationResult struct {
	Valid   bool
	Token   *InviteToken
	Preview *HistoryPreview
	Reason  *Error
}

// Service coordinates token and request stores with identity resolution and
// invariant checks. Emails are normalized here, exactly once, before any
// store sees them.
type Service struct {
	tokens   TokenRepository
	requests RequestRepository
	identity IdentityProvider
	preview  PreviewProvider
	clock    Clock
	retry    *RetryExecutor
	cfg      *Config
	metrics  *Metrics
	bus      *events.Bus
	logger   *zap.Logger
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithRetry wraps remote store calls in the given executor. In-memory wiring
// omits this; the store mutex already serializes mutations.
func WithRetry(r *RetryExecutor) ServiceOption {
	return func(s *Service) { s.retry = r }
}

// WithPreview supplies the history preview provider.
func WithPreview(p PreviewProvider) ServiceOption {
	return func(s *Service) { s.preview = p }
}

// WithClock overrides the time source.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithMetrics supplies the linking metrics.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithEvents supplies the event bus for link notifications.
func WithEvents(b *events.Bus) ServiceOption {
	return func(s *Service) { s.bus = b }
}

// NewService creates a new linking service.
func NewService(tokens TokenRepository, requests RequestRepository, identity IdentityProvider, cfg *Config, logger *zap.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Validate()

	s := &Service{
		tokens:   tokens,
		requests: requests,
		identity: identity,
		clock:    SystemClock{},
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ========== Token Operations ==========

// GenerateToken creates a single-use invite token for a group member on
// behalf of the caller.
func (s *Service) GenerateToken(ctx context.Context, targetMemberID uuid.UUID, targetMemberName string) (*InviteToken, error) {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}

	id, err := generateTokenID(s.cfg.TokenLength)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	token := &InviteToken{
		ID:               id,
		CreatorID:        caller.ID,
		CreatorEmail:     normalizeEmail(caller.Email),
		TargetMemberID:   targetMemberID,
		TargetMemberName: strings.TrimSpace(targetMemberName),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.TokenExpiry),
	}

	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.tokens.Create(ctx, token)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("invite token generated",
		zap.String("target_member_id", targetMemberID.String()),
		zap.String("creator_id", caller.ID.String()),
	)

	return token, nil
}

// ValidateToken reports whether a token can still be claimed. Read-only; the
// history preview is best-effort and its absence never invalidates the token.
func (s *Service) ValidateToken(ctx context.Context, id string) (*ValidationResult, error) {
	var token *InviteToken
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		token, err = s.tokens.Get(ctx, id)
		return err
	})
	if err != nil {
		var linkErr *Error
		if errors.As(err, &linkErr) {
			return &ValidationResult{Reason: linkErr}, nil
		}
		return nil, err
	}

	now := s.clock.Now()
	switch {
	case token.IsExpired(now):
		return &ValidationResult{Token: token, Reason: ErrExpired}, nil
	case token.IsClaimed():
		return &ValidationResult{Token: token, Reason: ErrAlreadyClaimed}, nil
	}

	result := &ValidationResult{Valid: true, Token: token}
	if s.preview != nil {
		preview, err := s.preview.Preview(ctx, token.TargetMemberID)
		if err != nil {
			s.logger.Debug("history preview unavailable", zap.Error(err))
		} else {
			result.Preview = preview
		}
	}
	return result, nil
}

// ClaimToken claims a token for the caller, linking the target member to the
// caller's account. Exactly one of N concurrent claimants succeeds.
func (s *Service) ClaimToken(ctx context.Context, id string) (*LinkAcceptResult, error) {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	caller.Email = normalizeEmail(caller.Email)

	var result *LinkAcceptResult
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.tokens.Claim(ctx, id, caller, s.clock.Now())
		return err
	})
	if err != nil {
		s.metrics.observeClaim(claimOutcome(err))
		return nil, err
	}
	s.metrics.observeClaim("success")
	s.publishLinked(result, caller.ID)

	s.logger.Info("invite token claimed",
		zap.String("member_id", result.LinkedMemberID.String()),
		zap.String("account_id", caller.ID.String()),
	)

	return result, nil
}

// RevokeToken deletes an unclaimed token. Only the creator may revoke.
func (s *Service) RevokeToken(ctx context.Context, id string) error {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return err
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.tokens.Revoke(ctx, id, caller.ID)
	})
}

// ========== Request Operations ==========

// CreateLinkRequest sends a link request to a recipient email for a member.
func (s *Service) CreateLinkRequest(ctx context.Context, recipientEmail string, targetMemberID uuid.UUID, targetMemberName string) (*LinkRequest, error) {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}

	requesterEmail := normalizeEmail(caller.Email)
	recipient := normalizeEmail(recipientEmail)
	if recipient == requesterEmail {
		s.metrics.observeRequest("create", "self_link")
		return nil, ErrSelfLinkNotAllowed
	}

	var existing *LinkRequest
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		existing, err = s.requests.FindPending(ctx, caller.ID, requesterEmail, recipient, targetMemberID)
		return err
	}); err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.observeRequest("create", "duplicate")
		return nil, ErrDuplicateRequest
	}

	now := s.clock.Now()
	req := &LinkRequest{
		ID:               uuid.New(),
		RequesterID:      caller.ID,
		RequesterEmail:   requesterEmail,
		RequesterName:    caller.Name,
		RecipientEmail:   recipient,
		TargetMemberID:   targetMemberID,
		TargetMemberName: strings.TrimSpace(targetMemberName),
		CreatedAt:        now,
		Status:           RequestStatusPending,
		ExpiresAt:        now.Add(s.cfg.RequestExpiry),
	}

	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.requests.Create(ctx, req)
	}); err != nil {
		return nil, err
	}
	s.metrics.observeRequest("create", "success")

	s.logger.Info("link request created",
		zap.String("request_id", req.ID.String()),
		zap.String("requester_id", caller.ID.String()),
		zap.String("target_member_id", targetMemberID.String()),
	)

	return req, nil
}

// IncomingRequests lists pending, unexpired requests addressed to the caller.
func (s *Service) IncomingRequests(ctx context.Context) ([]*LinkRequest, error) {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}

	var reqs []*LinkRequest
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		reqs, err = s.requests.Incoming(ctx, normalizeEmail(caller.Email), s.clock.Now())
		return err
	})
	return reqs, err
}

// OutgoingRequests lists pending, unexpired requests created by the caller.
func (s *Service) OutgoingRequests(ctx context.Context) ([]*LinkRequest, error) {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}

	var reqs []*LinkRequest
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		reqs, err = s.requests.Outgoing(ctx, caller.ID, s.clock.Now())
		return err
	})
	return reqs, err
}

// PreviousRequests lists resolved requests addressed to the caller.
func (s *Service) PreviousRequests(ctx context.Context) ([]*LinkRequest, error) {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}

	var reqs []*LinkRequest
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		reqs, err = s.requests.Previous(ctx, normalizeEmail(caller.Email))
		return err
	})
	return reqs, err
}

// AcceptLinkRequest accepts a request addressed to the caller and links the
// member to the caller's account.
func (s *Service) AcceptLinkRequest(ctx context.Context, id uuid.UUID) (*LinkAcceptResult, error) {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	caller.Email = normalizeEmail(caller.Email)

	var result *LinkAcceptResult
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.requests.Accept(ctx, id, caller, s.clock.Now())
		return err
	})
	if err != nil {
		s.metrics.observeRequest("accept", claimOutcome(err))
		return nil, err
	}
	s.metrics.observeRequest("accept", "success")
	s.publishLinked(result, caller.ID)

	s.logger.Info("link request accepted",
		zap.String("request_id", id.String()),
		zap.String("account_id", caller.ID.String()),
	)

	return result, nil
}

// DeclineLinkRequest declines a pending request addressed to the caller.
func (s *Service) DeclineLinkRequest(ctx context.Context, id uuid.UUID) error {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return err
	}
	caller.Email = normalizeEmail(caller.Email)

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.requests.Decline(ctx, id, caller, s.clock.Now())
	})
	if err != nil {
		s.metrics.observeRequest("decline", claimOutcome(err))
		return err
	}
	s.metrics.observeRequest("decline", "success")
	return nil
}

// CancelLinkRequest deletes a request created by the caller.
func (s *Service) CancelLinkRequest(ctx context.Context, id uuid.UUID) error {
	caller, err := s.identity.Identity(ctx)
	if err != nil {
		return err
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.requests.Cancel(ctx, id, caller.ID)
	})
}

// ========== Helpers ==========

// withRetry wraps a remote store call in the retry executor when one is
// configured.
func (s *Service) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	if s.retry == nil {
		return op(ctx)
	}
	return s.retry.Do(ctx, op)
}

// normalizeEmail lower-cases and trims an email for all equality comparisons.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// publishLinked emits a MemberLinked event when a bus is configured.
func (s *Service) publishLinked(result *LinkAcceptResult, userID uuid.UUID) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewMemberLinkedEvent(result.LinkedMemberID, userID))
}

// generateTokenID generates a cryptographically random, URL-safe token id.
func generateTokenID(length int) (string, error) {
	return random.SecureToken(length)
}

// claimOutcome maps an error to a metrics label.
func claimOutcome(err error) string {
	var linkErr *Error
	if errors.As(err, &linkErr) {
		return string(linkErr.Kind)
	}
	return "error"
}
