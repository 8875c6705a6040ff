package linking

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/splitmate/server/internal/utils/requestctx"
)

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubPreview returns a fixed preview or error.
type stubPreview struct {
	preview *HistoryPreview
	err     error
}

func (s stubPreview) Preview(ctx context.Context, memberID uuid.UUID) (*HistoryPreview, error) {
	return s.preview, s.err
}

func callerCtx(u requestctx.User) context.Context {
	return requestctx.WithUser(context.Background(), u)
}

func newTestService(t *testing.T, store *MemoryStore, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{WithClock(newFakeClock(time.Now()))}
	return NewService(store, NewMemoryRequestRepository(store), ContextIdentityProvider{}, DefaultConfig(), zap.NewNop(), append(base, opts...)...)
}

func TestService_GenerateToken(t *testing.T) {
	store := NewMemoryStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, store, WithClock(clock))

	creator := requestctx.User{ID: uuid.New(), Email: "  Owner@Example.COM ", Name: "Owner"}
	memberID := seedMember(store, uuid.New())

	token, err := svc.GenerateToken(callerCtx(creator), memberID, "Sam")
	require.NoError(t, err)

	assert.NotEmpty(t, token.ID)
	assert.Equal(t, creator.ID, token.CreatorID)
	assert.Equal(t, "owner@example.com", token.CreatorEmail)
	assert.Equal(t, memberID, token.TargetMemberID)
	assert.Equal(t, clock.Now(), token.CreatedAt)
	assert.Equal(t, clock.Now().Add(30*24*time.Hour), token.ExpiresAt)
	assert.False(t, token.IsClaimed())
}

func TestService_GenerateToken_RequiresSession(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	_, err := svc.GenerateToken(context.Background(), uuid.New(), "Sam")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestService_ValidateToken(t *testing.T) {
	store := NewMemoryStore()
	clock := newFakeClock(time.Now())
	preview := &HistoryPreview{MemberName: "Sam", GroupName: "Ski Trip", ExpenseCount: 7, NetBalance: -1250}
	svc := newTestService(t, store, WithClock(clock), WithPreview(stubPreview{preview: preview}))

	creator := requestctx.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	memberID := seedMember(store, uuid.New())

	token, err := svc.GenerateToken(callerCtx(creator), memberID, "Sam")
	require.NoError(t, err)

	t.Run("valid token includes preview", func(t *testing.T) {
		result, err := svc.ValidateToken(context.Background(), token.ID)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		require.NotNil(t, result.Token)
		assert.Equal(t, preview, result.Preview)
	})

	t.Run("unknown token", func(t *testing.T) {
		result, err := svc.ValidateToken(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.ErrorIs(t, result.Reason, ErrInvalid)
	})

	t.Run("preview failure does not invalidate", func(t *testing.T) {
		broken := newTestService(t, store, WithClock(clock), WithPreview(stubPreview{err: &net.DNSError{Err: "down"}}))
		result, err := broken.ValidateToken(context.Background(), token.ID)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Nil(t, result.Preview)
	})

	t.Run("expired token", func(t *testing.T) {
		clock.Advance(31 * 24 * time.Hour)
		result, err := svc.ValidateToken(context.Background(), token.ID)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.ErrorIs(t, result.Reason, ErrExpired)
		clock.Advance(-31 * 24 * time.Hour)
	})
}

func TestService_ClaimToken_Expired(t *testing.T) {
	store := NewMemoryStore()
	clock := newFakeClock(time.Now())
	svc := newTestService(t, store, WithClock(clock))

	creator := requestctx.User{ID: uuid.New(), Email: "owner@example.com"}
	memberID := seedMember(store, uuid.New())
	token, err := svc.GenerateToken(callerCtx(creator), memberID, "Sam")
	require.NoError(t, err)

	clock.Advance(30*24*time.Hour + time.Second)

	claimant := requestctx.User{ID: uuid.New(), Email: "friend@example.com"}
	_, err = svc.ClaimToken(callerCtx(claimant), token.ID)
	assert.ErrorIs(t, err, ErrExpired)

	// Still unclaimed after the failed attempt.
	stored, err := store.Get(context.Background(), token.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsClaimed())
}

func TestService_ClaimToken_ConcurrentClaimants(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	creator := requestctx.User{ID: uuid.New(), Email: "owner@example.com"}
	memberID := seedMember(store, uuid.New())
	token, err := svc.GenerateToken(callerCtx(creator), memberID, "Sam")
	require.NoError(t, err)

	const claimants = 5
	var wg sync.WaitGroup
	type outcome struct {
		result *LinkAcceptResult
		err    error
	}
	outcomes := make(chan outcome, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := requestctx.User{ID: uuid.New(), Email: "claimant@example.com"}
			res, err := svc.ClaimToken(callerCtx(user), token.ID)
			outcomes <- outcome{res, err}
		}()
	}
	wg.Wait()
	close(outcomes)

	successes, conflicts := 0, 0
	for o := range outcomes {
		if o.err == nil {
			successes++
			assert.Equal(t, memberID, o.result.LinkedMemberID)
		} else {
			assert.ErrorIs(t, o.err, ErrAlreadyClaimed)
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, claimants-1, conflicts)

	// A later validation reports the token as used.
	result, err := svc.ValidateToken(context.Background(), token.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.ErrorIs(t, result.Reason, ErrAlreadyClaimed)
}

func TestService_ClaimToken_RetriesTransientFailures(t *testing.T) {
	store := NewMemoryStore()
	flaky := &flakyTokenRepository{TokenRepository: store, failures: 2}

	exec := NewRetryExecutor(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0})
	svc := NewService(flaky, NewMemoryRequestRepository(store), ContextIdentityProvider{}, DefaultConfig(), zap.NewNop(),
		WithClock(newFakeClock(time.Now())), WithRetry(exec))

	creator := requestctx.User{ID: uuid.New(), Email: "owner@example.com"}
	memberID := seedMember(store, uuid.New())
	token, err := svc.GenerateToken(callerCtx(creator), memberID, "Sam")
	require.NoError(t, err)

	flaky.calls = 0
	claimant := requestctx.User{ID: uuid.New(), Email: "friend@example.com"}
	result, err := svc.ClaimToken(callerCtx(claimant), token.ID)
	require.NoError(t, err)
	assert.Equal(t, memberID, result.LinkedMemberID)
	assert.Equal(t, 3, flaky.calls)
}

// flakyTokenRepository fails Claim with a transport error a fixed number of
// times before delegating.
type flakyTokenRepository struct {
	TokenRepository
	failures int
	calls    int
}

func (f *flakyTokenRepository) Claim(ctx context.Context, id string, claimant Identity, now time.Time) (*LinkAcceptResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &net.DNSError{Err: "no such host", Name: "db.internal"}
	}
	return f.TokenRepository.Claim(ctx, id, claimant, now)
}

func TestService_CreateLinkRequest_SelfLink(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	requester := requestctx.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	memberID := seedMember(store, uuid.New())

	_, err := svc.CreateLinkRequest(callerCtx(requester), " OWNER@example.com ", memberID, "Sam")
	assert.ErrorIs(t, err, ErrSelfLinkNotAllowed)

	// No record was created.
	outgoing, err := svc.OutgoingRequests(callerCtx(requester))
	require.NoError(t, err)
	assert.Empty(t, outgoing)
}

func TestService_CreateLinkRequest_Duplicate(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	requester := requestctx.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	memberID := seedMember(store, uuid.New())

	first, err := svc.CreateLinkRequest(callerCtx(requester), "friend@example.com", memberID, "Sam")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusPending, first.Status)

	_, err = svc.CreateLinkRequest(callerCtx(requester), "Friend@Example.com", memberID, "Sam")
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	// A different member is fine.
	otherMember := seedMember(store, uuid.New())
	_, err = svc.CreateLinkRequest(callerCtx(requester), "friend@example.com", otherMember, "Riley")
	assert.NoError(t, err)
}

func TestService_AcceptLinkRequest(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	requester := requestctx.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	recipient := requestctx.User{ID: uuid.New(), Email: "friend@example.com", Name: "Friend"}
	memberID := seedMember(store, uuid.New())

	req, err := svc.CreateLinkRequest(callerCtx(requester), recipient.Email, memberID, "Sam")
	require.NoError(t, err)

	t.Run("stranger cannot accept", func(t *testing.T) {
		stranger := requestctx.User{ID: uuid.New(), Email: "stranger@example.com"}
		_, err := svc.AcceptLinkRequest(callerCtx(stranger), req.ID)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("recipient accepts", func(t *testing.T) {
		result, err := svc.AcceptLinkRequest(callerCtx(recipient), req.ID)
		require.NoError(t, err)
		assert.Equal(t, memberID, result.LinkedMemberID)
		assert.Equal(t, recipient.ID, result.LinkedAccountID)
		assert.Equal(t, "friend@example.com", result.LinkedAccountEmail)

		member := store.GetMember(memberID)
		require.NotNil(t, member)
		require.NotNil(t, member.LinkedUserID)
		assert.Equal(t, recipient.ID, *member.LinkedUserID)
	})

	t.Run("second accept conflicts", func(t *testing.T) {
		_, err := svc.AcceptLinkRequest(callerCtx(recipient), req.ID)
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
	})

	t.Run("resolved request shows in previous", func(t *testing.T) {
		previous, err := svc.PreviousRequests(callerCtx(recipient))
		require.NoError(t, err)
		require.Len(t, previous, 1)
		assert.Equal(t, RequestStatusAccepted, previous[0].Status)
	})
}

func TestService_DeclineLinkRequest(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	requester := requestctx.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	recipient := requestctx.User{ID: uuid.New(), Email: "friend@example.com"}
	memberID := seedMember(store, uuid.New())

	req, err := svc.CreateLinkRequest(callerCtx(requester), recipient.Email, memberID, "Sam")
	require.NoError(t, err)

	err = svc.DeclineLinkRequest(callerCtx(recipient), req.ID)
	require.NoError(t, err)

	stored, err := store.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusDeclined, stored.Status)
	require.NotNil(t, stored.RejectedAt)

	// Declined requests stay out of the incoming list but can be re-accepted.
	incoming, err := svc.IncomingRequests(callerCtx(recipient))
	require.NoError(t, err)
	assert.Empty(t, incoming)

	result, err := svc.AcceptLinkRequest(callerCtx(recipient), req.ID)
	require.NoError(t, err)
	assert.Equal(t, memberID, result.LinkedMemberID)
}

func TestService_CancelLinkRequest(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	requester := requestctx.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	memberID := seedMember(store, uuid.New())

	req, err := svc.CreateLinkRequest(callerCtx(requester), "friend@example.com", memberID, "Sam")
	require.NoError(t, err)

	stranger := requestctx.User{ID: uuid.New(), Email: "stranger@example.com"}
	err = svc.CancelLinkRequest(callerCtx(stranger), req.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = svc.CancelLinkRequest(callerCtx(requester), req.ID)
	require.NoError(t, err)

	// Cancellation removes the record instead of resolving it.
	_, err = store.GetRequest(context.Background(), req.ID)
	assert.ErrorIs(t, err, ErrInvalid)
}
