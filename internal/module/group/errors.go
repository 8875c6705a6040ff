package group

import "errors"

// Group module errors.
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrNotGroupMember  = errors.New("user is not a member of this group")
	ErrInvalidAmount   = errors.New("expense amount must be positive")
	ErrInvalidSplit    = errors.New("expense shares must sum to the expense amount")
)
