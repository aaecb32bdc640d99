package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotParticipant   = errors.New("user is not a participant")
	ErrInvalidStatus    = errors.New("invalid status for this operation")
	ErrSameUser         = errors.New("conversation requires two distinct users")
)
