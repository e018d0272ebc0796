package rounds

import (
	"errors"

	"tap-arena/internal/gateway"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRoundNotFound  = gateway.ErrRoundNotFound
)
