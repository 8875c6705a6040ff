package group

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splitmate/server/internal/module/linking"
)

// Service handles group business logic.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new group service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateGroup creates a group with one member per name. The creator's own
// member is linked to their account immediately; the rest stay unlinked
// until claimed.
func (s *Service) CreateGroup(ctx context.Context, creatorID uuid.UUID, name, creatorMemberName string, memberNames []string) (*Group, error) {
	creator := creatorID
	group := &Group{
		Name:      strings.TrimSpace(name),
		CreatorID: creatorID,
		Members: []Member{
			{Name: strings.TrimSpace(creatorMemberName), LinkedUserID: &creator},
		},
	}
	for _, n := range memberNames {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		group.Members = append(group.Members, Member{Name: n})
	}

	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	s.logger.Info("group created",
		zap.String("group_id", group.ID.String()),
		zap.Int("members", len(group.Members)))

	return group, nil
}

// GetGroup retrieves a group. The caller must have a linked member in it.
func (s *Service) GetGroup(ctx context.Context, callerID, groupID uuid.UUID) (*Group, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !s.isMember(group, callerID) {
		return nil, ErrNotGroupMember
	}
	return group, nil
}

// ListGroups retrieves the caller's groups.
func (s *Service) ListGroups(ctx context.Context, callerID uuid.UUID) ([]Group, error) {
	return s.repo.ListGroupsForUser(ctx, callerID)
}

// AddMember adds an unlinked member to a group.
func (s *Service) AddMember(ctx context.Context, callerID, groupID uuid.UUID, name string) (*Member, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !s.isMember(group, callerID) {
		return nil, ErrNotGroupMember
	}

	member := &Member{GroupID: groupID, Name: strings.TrimSpace(name)}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// RecordExpense records an expense paid by one member, split equally among
// all group members. Remainder cents go to the earliest members.
func (s *Service) RecordExpense(ctx context.Context, callerID, groupID, paidByMemberID uuid.UUID, description string, amountCents int64) (*Expense, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !s.isMember(group, callerID) {
		return nil, ErrNotGroupMember
	}

	payerFound := false
	for _, m := range group.Members {
		if m.ID == paidByMemberID {
			payerFound = true
			break
		}
	}
	if !payerFound {
		return nil, ErrMemberNotFound
	}

	expense := &Expense{
		GroupID:        groupID,
		PaidByMemberID: paidByMemberID,
		Description:    strings.TrimSpace(description),
		AmountCents:    amountCents,
		Shares:         splitEqually(amountCents, group.Members),
	}

	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, err
	}

	s.logger.Info("expense recorded",
		zap.String("group_id", groupID.String()),
		zap.Int64("amount_cents", amountCents))

	return expense, nil
}

// ListExpenses retrieves a group's expenses, newest first.
func (s *Service) ListExpenses(ctx context.Context, callerID, groupID uuid.UUID) ([]Expense, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !s.isMember(group, callerID) {
		return nil, ErrNotGroupMember
	}
	return s.repo.ListExpenses(ctx, groupID)
}

// Preview summarizes a member's shared history for display to a prospective
// claimant. Implements the linking preview provider.
func (s *Service) Preview(ctx context.Context, memberID uuid.UUID) (*linking.HistoryPreview, error) {
	member, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	group, err := s.repo.GetGroup(ctx, member.GroupID)
	if err != nil {
		return nil, err
	}
	activity, err := s.repo.MemberActivity(ctx, memberID)
	if err != nil {
		return nil, err
	}

	return &linking.HistoryPreview{
		MemberName:   member.Name,
		GroupName:    group.Name,
		ExpenseCount: activity.ExpenseCount,
		NetBalance:   activity.NetBalanceCents(),
		LastActivity: activity.LastActivity,
	}, nil
}

func (s *Service) isMember(group *Group, userID uuid.UUID) bool {
	for _, m := range group.Members {
		if m.LinkedUserID != nil && *m.LinkedUserID == userID {
			return true
		}
	}
	return false
}

// splitEqually divides an amount across members, assigning the remainder
// one cent at a time from the front of the list.
func splitEqually(amountCents int64, members []Member) []ExpenseShare {
	n := int64(len(members))
	if n == 0 {
		return nil
	}
	base := amountCents / n
	remainder := amountCents % n

	shares := make([]ExpenseShare, 0, n)
	for i, m := range members {
		share := base
		if int64(i) < remainder {
			share++
		}
		shares = append(shares, ExpenseShare{MemberID: m.ID, AmountCents: share})
	}
	return shares
}
