package verso

import "errors"

// Sentinel errors for the verso package.
// Use errors.Is to check: errors.Is(err, verso.ErrInvalidRating)
var (
	ErrInvalidRating   = errors.New("verso: invalid rating")
	ErrInvalidWeights  = errors.New("verso: weights out of bounds")
	ErrInvalidProfile  = errors.New("verso: invalid parameter profile")
	ErrInvalidCard     = errors.New("verso: invalid card state")
	ErrCardMismatch    = errors.New("verso: card ID mismatch in review log")
	ErrDegenerateValue = errors.New("verso: formula produced a non-finite value")
)
