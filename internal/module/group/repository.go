package group

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for group data access.
type Repository interface {
	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, id uuid.UUID) (*Group, error)
	ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]Group, error)

	AddMember(ctx context.Context, member *Member) error
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]Member, error)

	CreateExpense(ctx context.Context, expense *Expense) error
	ListExpenses(ctx context.Context, groupID uuid.UUID) ([]Expense, error)
	MemberActivity(ctx context.Context, memberID uuid.UUID) (*MemberActivity, error)
}

// repository implements Repository using GORM.
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new group repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateGroup creates a group together with its initial members.
func (r *repository) CreateGroup(ctx context.Context, group *Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// GetGroup retrieves a group with its members.
func (r *repository) GetGroup(ctx context.Context, id uuid.UUID) (*Group, error) {
	var group Group
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// ListGroupsForUser retrieves groups where the user has a linked member.
func (r *repository) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]Group, error) {
	var groups []Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.linked_user_id = ?", userID).
		Order("groups.created_at DESC").
		Find(&groups).Error
	return groups, err
}

// AddMember adds a member to a group.
func (r *repository) AddMember(ctx context.Context, member *Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// GetMember retrieves a member by ID.
func (r *repository) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	var member Member
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ListMembers retrieves all members of a group.
func (r *repository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]Member, error) {
	var members []Member
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

// CreateExpense creates an expense together with its shares.
func (r *repository) CreateExpense(ctx context.Context, expense *Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

// ListExpenses retrieves all expenses of a group, newest first.
func (r *repository) ListExpenses(ctx context.Context, groupID uuid.UUID) ([]Expense, error) {
	var expenses []Expense
	err := r.db.WithContext(ctx).
		Preload("Shares").
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&expenses).Error
	return expenses, err
}

// MemberActivity aggregates what a member paid and owes across their group.
func (r *repository) MemberActivity(ctx context.Context, memberID uuid.UUID) (*MemberActivity, error) {
	member, err := r.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	activity := &MemberActivity{}

	var paid struct {
		Total int64
		Count int
	}
	err = r.db.WithContext(ctx).Model(&Expense{}).
		Select("COALESCE(SUM(amount_cents), 0) AS total, COUNT(*) AS count").
		Where("paid_by_member_id = ?", memberID).
		Scan(&paid).Error
	if err != nil {
		return nil, err
	}
	activity.PaidCents = paid.Total

	var owed int64
	err = r.db.WithContext(ctx).Model(&ExpenseShare{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("member_id = ?", memberID).
		Scan(&owed).Error
	if err != nil {
		return nil, err
	}
	activity.OwedCents = owed

	var count int64
	err = r.db.WithContext(ctx).Model(&Expense{}).
		Where("group_id = ?", member.GroupID).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	activity.ExpenseCount = int(count)

	var last Expense
	err = r.db.WithContext(ctx).
		Where("group_id = ?", member.GroupID).
		Order("created_at DESC").
		First(&last).Error
	if err == nil {
		t := last.CreatedAt
		activity.LastActivity = &t
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return activity, nil
}
