package domain

import "errors"

var (
	ErrNotFound           = errors.New("match not found")
	ErrInvalidState       = errors.New("operation not allowed in current match status")
	ErrMatchClosed        = errors.New("match is completed or abandoned")
	ErrDuplicateMember    = errors.New("player already enrolled in match")
	ErrUnknownPlayer      = errors.New("player not enrolled in match")
	ErrVersionConflict    = errors.New("match version does not match expected version")
	ErrInvalidMetricValue = errors.New("metric value would leave its allowed domain")
	ErrNotOwner           = errors.New("caller does not own this match")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
