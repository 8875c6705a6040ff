package linking

// ErrorKind identifies a class of linking failure.
type ErrorKind string

const (
	KindInvalid              ErrorKind = "invalid"
	KindExpired              ErrorKind = "expired"
	KindAlreadyClaimed       ErrorKind = "already_claimed"
	KindUnauthorized         ErrorKind = "unauthorized"
	KindSelfLinkNotAllowed   ErrorKind = "self_link_not_allowed"
	KindDuplicateRequest     ErrorKind = "duplicate_request"
	KindMemberAlreadyLinked  ErrorKind = "member_already_linked"
	KindAccountAlreadyLinked ErrorKind = "account_already_linked"
)

// Error is a linking failure with a stable kind, a user-facing message and an
// optional recovery suggestion. Messages never embed the id or email that
// triggered the failure.
type Error struct {
	Kind     ErrorKind
	Message  string
	Recovery string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is matches linking errors by kind so that errors.Is(err, ErrExpired) works
// regardless of which instance was returned.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Linking module errors. None of these are retryable.
var (
	ErrInvalid = &Error{
		Kind:     KindInvalid,
		Message:  "invite not found",
		Recovery: "ask the sender for a new invite",
	}
	ErrExpired = &Error{
		Kind:     KindExpired,
		Message:  "invite has expired",
		Recovery: "ask the sender for a new invite",
	}
	ErrAlreadyClaimed = &Error{
		Kind:     KindAlreadyClaimed,
		Message:  "invite has already been used",
		Recovery: "ask the sender for a new invite if this was unexpected",
	}
	ErrUnauthorized = &Error{
		Kind:     KindUnauthorized,
		Message:  "you are not allowed to perform this action",
		Recovery: "sign in with the account the invite was sent to",
	}
	ErrSelfLinkNotAllowed = &Error{
		Kind:     KindSelfLinkNotAllowed,
		Message:  "you cannot send a link request to yourself",
		Recovery: "enter the email address of the person you want to link",
	}
	ErrDuplicateRequest = &Error{
		Kind:     KindDuplicateRequest,
		Message:  "a link request for this member is already pending",
		Recovery: "wait for the recipient to respond or cancel the existing request",
	}
	ErrMemberAlreadyLinked = &Error{
		Kind:     KindMemberAlreadyLinked,
		Message:  "this member is already linked to another account",
		Recovery: "unlink the member first or pick a different member",
	}
	ErrAccountAlreadyLinked = &Error{
		Kind:     KindAccountAlreadyLinked,
		Message:  "this account is already linked to another member of the group",
		Recovery: "unlink the current member before claiming a new one",
	}
)
