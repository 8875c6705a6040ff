package group

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepository struct {
	mu       sync.Mutex
	groups   map[uuid.UUID]*Group
	members  map[uuid.UUID]*Member
	expenses map[uuid.UUID]*Expense
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		groups:   make(map[uuid.UUID]*Group),
		members:  make(map[uuid.UUID]*Member),
		expenses: make(map[uuid.UUID]*Expense),
	}
}

func (r *fakeRepository) CreateGroup(_ context.Context, group *Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	group.ID = uuid.New()
	group.CreatedAt = time.Now()
	for i := range group.Members {
		group.Members[i].ID = uuid.New()
		group.Members[i].GroupID = group.ID
		group.Members[i].CreatedAt = time.Now()
		m := group.Members[i]
		r.members[m.ID] = &m
	}
	r.groups[group.ID] = group
	return nil
}

func (r *fakeRepository) GetGroup(_ context.Context, id uuid.UUID) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, ErrGroupNotFound
	}
	copied := *g
	copied.Members = nil
	for _, m := range r.members {
		if m.GroupID == id {
			copied.Members = append(copied.Members, *m)
		}
	}
	return &copied, nil
}

func (r *fakeRepository) ListGroupsForUser(_ context.Context, userID uuid.UUID) ([]Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Group
	for _, m := range r.members {
		if m.LinkedUserID != nil && *m.LinkedUserID == userID {
			if g, ok := r.groups[m.GroupID]; ok {
				out = append(out, *g)
			}
		}
	}
	return out, nil
}

func (r *fakeRepository) AddMember(_ context.Context, member *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member.ID = uuid.New()
	member.CreatedAt = time.Now()
	r.members[member.ID] = member
	return nil
}

func (r *fakeRepository) GetMember(_ context.Context, id uuid.UUID) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

func (r *fakeRepository) ListMembers(_ context.Context, groupID uuid.UUID) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Member
	for _, m := range r.members {
		if m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeRepository) CreateExpense(_ context.Context, expense *Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	expense.ID = uuid.New()
	expense.CreatedAt = time.Now()
	r.expenses[expense.ID] = expense
	return nil
}

func (r *fakeRepository) ListExpenses(_ context.Context, groupID uuid.UUID) ([]Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Expense
	for _, e := range r.expenses {
		if e.GroupID == groupID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeRepository) MemberActivity(_ context.Context, memberID uuid.UUID) (*MemberActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return nil, ErrMemberNotFound
	}
	activity := &MemberActivity{}
	for _, e := range r.expenses {
		if e.GroupID != m.GroupID {
			continue
		}
		activity.ExpenseCount++
		if e.PaidByMemberID == memberID {
			activity.PaidCents += e.AmountCents
		}
		for _, s := range e.Shares {
			if s.MemberID == memberID {
				activity.OwedCents += s.AmountCents
			}
		}
		if activity.LastActivity == nil || e.CreatedAt.After(*activity.LastActivity) {
			t := e.CreatedAt
			activity.LastActivity = &t
		}
	}
	return activity, nil
}

func newGroupTestService() (*Service, *fakeRepository) {
	repo := newFakeRepository()
	return NewService(repo, zap.NewNop()), repo
}

func TestService_CreateGroup(t *testing.T) {
	svc, _ := newGroupTestService()
	creator := uuid.New()

	group, err := svc.CreateGroup(context.Background(), creator, "Ski Trip", "Alex", []string{"Blake", "Casey", ""})
	require.NoError(t, err)
	require.Len(t, group.Members, 3)

	assert.Equal(t, "Alex", group.Members[0].Name)
	require.NotNil(t, group.Members[0].LinkedUserID)
	assert.Equal(t, creator, *group.Members[0].LinkedUserID)
	assert.Nil(t, group.Members[1].LinkedUserID)
	assert.Nil(t, group.Members[2].LinkedUserID)
}

func TestService_GetGroupRequiresMembership(t *testing.T) {
	svc, _ := newGroupTestService()
	creator := uuid.New()

	group, err := svc.CreateGroup(context.Background(), creator, "Ski Trip", "Alex", nil)
	require.NoError(t, err)

	_, err = svc.GetGroup(context.Background(), creator, group.ID)
	require.NoError(t, err)

	_, err = svc.GetGroup(context.Background(), uuid.New(), group.ID)
	assert.ErrorIs(t, err, ErrNotGroupMember)
}

func TestService_RecordExpenseSplitsEqually(t *testing.T) {
	svc, _ := newGroupTestService()
	creator := uuid.New()

	group, err := svc.CreateGroup(context.Background(), creator, "Ski Trip", "Alex", []string{"Blake", "Casey"})
	require.NoError(t, err)
	payer := group.Members[0].ID

	expense, err := svc.RecordExpense(context.Background(), creator, group.ID, payer, "Lift tickets", 1000)
	require.NoError(t, err)
	require.Len(t, expense.Shares, 3)

	var total int64
	for _, s := range expense.Shares {
		total += s.AmountCents
	}
	assert.Equal(t, int64(1000), total)
	assert.Equal(t, int64(334), expense.Shares[0].AmountCents)
	assert.Equal(t, int64(333), expense.Shares[1].AmountCents)
	assert.Equal(t, int64(333), expense.Shares[2].AmountCents)
}

func TestService_RecordExpenseValidation(t *testing.T) {
	svc, _ := newGroupTestService()
	creator := uuid.New()

	group, err := svc.CreateGroup(context.Background(), creator, "Ski Trip", "Alex", []string{"Blake"})
	require.NoError(t, err)

	_, err = svc.RecordExpense(context.Background(), creator, group.ID, group.Members[0].ID, "Dinner", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordExpense(context.Background(), creator, group.ID, uuid.New(), "Dinner", 100)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	_, err = svc.RecordExpense(context.Background(), uuid.New(), group.ID, group.Members[0].ID, "Dinner", 100)
	assert.ErrorIs(t, err, ErrNotGroupMember)
}

func TestService_Preview(t *testing.T) {
	svc, _ := newGroupTestService()
	creator := uuid.New()

	group, err := svc.CreateGroup(context.Background(), creator, "Ski Trip", "Alex", []string{"Blake"})
	require.NoError(t, err)
	alex := group.Members[0].ID
	blake := group.Members[1].ID

	_, err = svc.RecordExpense(context.Background(), creator, group.ID, alex, "Lift tickets", 1000)
	require.NoError(t, err)

	preview, err := svc.Preview(context.Background(), blake)
	require.NoError(t, err)
	assert.Equal(t, "Blake", preview.MemberName)
	assert.Equal(t, "Ski Trip", preview.GroupName)
	assert.Equal(t, 1, preview.ExpenseCount)
	assert.Equal(t, int64(-500), preview.NetBalance)
	assert.NotNil(t, preview.LastActivity)
}

func TestService_PreviewUnknownMember(t *testing.T) {
	svc, _ := newGroupTestService()

	_, err := svc.Preview(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrMemberNotFound)
}
