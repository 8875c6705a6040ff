package linking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory backend implementing both TokenRepository and
// RequestRepository. A single mutex serializes every check-then-mutate
// sequence, giving the same linearizable claim semantics as the conditional
// updates of the GORM repositories. Used by tests and local development.
type MemoryStore struct {
	mu sync.Mutex

	tokens   map[string]*InviteToken
	requests map[uuid.UUID]*LinkRequest
	members  map[uuid.UUID]*Member
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:   make(map[string]*InviteToken),
		requests: make(map[uuid.UUID]*LinkRequest),
		members:  make(map[uuid.UUID]*Member),
	}
}

// AddMember seeds a member record.
func (s *MemoryStore) AddMember(member *Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *member
	s.members[m.ID] = &m
}

// GetMember returns a copy of a member record, or nil.
func (s *MemoryStore) GetMember(id uuid.UUID) *Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// --- TokenRepository ---

// Create persists a new invite token.
func (s *MemoryStore) Create(ctx context.Context, token *InviteToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	s.tokens[t.ID] = &t
	return nil
}

// Get retrieves a token by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*InviteToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrInvalid
	}
	cp := *t
	return &cp, nil
}

// Claim performs the check-then-set under the store mutex: of N concurrent
// claimants exactly one succeeds, the rest observe ErrAlreadyClaimed.
func (s *MemoryStore) Claim(ctx context.Context, id string, claimant Identity, now time.Time) (*LinkAcceptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrInvalid
	}
	if t.IsExpired(now) {
		return nil, ErrExpired
	}
	if t.IsClaimed() {
		return nil, ErrAlreadyClaimed
	}

	if err := s.linkMemberLocked(t.TargetMemberID, claimant.ID); err != nil {
		return nil, err
	}

	claimedBy := claimant.ID
	claimedAt := now
	t.ClaimedBy = &claimedBy
	t.ClaimedAt = &claimedAt

	return &LinkAcceptResult{
		LinkedMemberID:     t.TargetMemberID,
		LinkedAccountID:    claimant.ID,
		LinkedAccountEmail: claimant.Email,
	}, nil
}

// Revoke deletes an unclaimed token on behalf of its creator.
func (s *MemoryStore) Revoke(ctx context.Context, id string, requesterID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return ErrInvalid
	}
	if t.CreatorID != requesterID {
		return ErrUnauthorized
	}
	if t.IsClaimed() {
		return ErrAlreadyClaimed
	}

	delete(s.tokens, id)
	return nil
}

// --- RequestRepository ---

// CreateRequest persists a new link request.
func (s *MemoryStore) CreateRequest(ctx context.Context, req *LinkRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *req
	s.requests[r.ID] = &r
	return nil
}

// GetRequest retrieves a link request by id.
func (s *MemoryStore) GetRequest(ctx context.Context, id uuid.UUID) (*LinkRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrInvalid
	}
	cp := *r
	return &cp, nil
}

// FindPending looks for a pending request with the same tuple.
func (s *MemoryStore) FindPending(ctx context.Context, requesterID uuid.UUID, requesterEmail, recipientEmail string, targetMemberID uuid.UUID) (*LinkRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.requests {
		if r.Status != RequestStatusPending {
			continue
		}
		if (r.RequesterID == requesterID || r.RequesterEmail == requesterEmail) &&
			r.RecipientEmail == recipientEmail &&
			r.TargetMemberID == targetMemberID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// Incoming lists pending, unexpired requests addressed to the given email.
func (s *MemoryStore) Incoming(ctx context.Context, recipientEmail string, now time.Time) ([]*LinkRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []*LinkRequest
	for _, r := range s.requests {
		if r.RecipientEmail == recipientEmail && r.Status == RequestStatusPending && !r.IsExpired(now) {
			cp := *r
			reqs = append(reqs, &cp)
		}
	}
	sortByCreatedDesc(reqs)
	return reqs, nil
}

// Outgoing lists pending, unexpired requests created by the given user.
func (s *MemoryStore) Outgoing(ctx context.Context, requesterID uuid.UUID, now time.Time) ([]*LinkRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []*LinkRequest
	for _, r := range s.requests {
		if r.RequesterID == requesterID && r.Status == RequestStatusPending && !r.IsExpired(now) {
			cp := *r
			reqs = append(reqs, &cp)
		}
	}
	sortByCreatedDesc(reqs)
	return reqs, nil
}

// Previous lists resolved requests addressed to the given email.
func (s *MemoryStore) Previous(ctx context.Context, recipientEmail string) ([]*LinkRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []*LinkRequest
	for _, r := range s.requests {
		if r.RecipientEmail != recipientEmail {
			continue
		}
		switch r.Status {
		case RequestStatusAccepted, RequestStatusDeclined, RequestStatusRejected:
			cp := *r
			reqs = append(reqs, &cp)
		}
	}
	sortByCreatedDesc(reqs)
	return reqs, nil
}

// Accept transitions a request to accepted under the store mutex.
func (s *MemoryStore) Accept(ctx context.Context, id uuid.UUID, acceptor Identity, now time.Time) (*LinkAcceptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrInvalid
	}
	if r.RecipientEmail != acceptor.Email {
		return nil, ErrUnauthorized
	}
	if r.IsExpired(now) {
		return nil, ErrExpired
	}
	if r.Status != RequestStatusPending && r.Status != RequestStatusDeclined {
		return nil, ErrAlreadyClaimed
	}

	if err := s.linkMemberLocked(r.TargetMemberID, acceptor.ID); err != nil {
		return nil, err
	}

	r.Status = RequestStatusAccepted

	return &LinkAcceptResult{
		LinkedMemberID:     r.TargetMemberID,
		LinkedAccountID:    acceptor.ID,
		LinkedAccountEmail: acceptor.Email,
	}, nil
}

// Decline transitions a pending request to declined.
func (s *MemoryStore) Decline(ctx context.Context, id uuid.UUID, acceptor Identity, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return ErrInvalid
	}
	if r.RecipientEmail != acceptor.Email {
		return ErrUnauthorized
	}
	if r.IsExpired(now) {
		return ErrExpired
	}
	if r.Status != RequestStatusPending {
		return ErrAlreadyClaimed
	}

	rejectedAt := now
	r.Status = RequestStatusDeclined
	r.RejectedAt = &rejectedAt
	return nil
}

// Cancel deletes a request on behalf of its requester.
func (s *MemoryStore) Cancel(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return ErrInvalid
	}
	if r.RequesterID != requesterID {
		return ErrUnauthorized
	}

	delete(s.requests, id)
	return nil
}

// linkMemberLocked enforces the one-account-one-member invariant. Callers
// must hold the store mutex.
func (s *MemoryStore) linkMemberLocked(memberID, userID uuid.UUID) error {
	m, ok := s.members[memberID]
	if !ok {
		return ErrInvalid
	}
	if m.LinkedUserID != nil {
		return ErrMemberAlreadyLinked
	}
	for _, other := range s.members {
		if other.ID != memberID && other.GroupID == m.GroupID &&
			other.LinkedUserID != nil && *other.LinkedUserID == userID {
			return ErrAccountAlreadyLinked
		}
	}

	linked := userID
	m.LinkedUserID = &linked
	return nil
}

func sortByCreatedDesc(reqs []*LinkRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
}

// memoryRequests adapts MemoryStore to the RequestRepository interface, whose
// Create/Get names collide with TokenRepository's.
type memoryRequests struct {
	*MemoryStore
}

// NewMemoryRequestRepository returns a RequestRepository view of the store.
func NewMemoryRequestRepository(s *MemoryStore) RequestRepository {
	return memoryRequests{s}
}

// Create persists a new link request.
func (m memoryRequests) Create(ctx context.Context, req *LinkRequest) error {
	return m.CreateRequest(ctx, req)
}

// Get retrieves a link request by id.
func (m memoryRequests) Get(ctx context.Context, id uuid.UUID) (*LinkRequest, error) {
	return m.GetRequest(ctx, id)
}
