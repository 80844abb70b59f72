package pricer

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/pkg/retrier"
)

// RetryingSource repeats failed fetches with exponential backoff.
type RetryingSource struct {
	next    Source
	retrier *retrier.Retrier
	logger  *zap.Logger
}

func NewRetryingSource(next Source, r *retrier.Retrier, logger *zap.Logger) *RetryingSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(2), retrier.WithRetryIf(IsTransient))
	}
	return &RetryingSource{next: next, retrier: r, logger: logger}
}

func (s *RetryingSource) Fetch(ctx context.Context) (domain.PriceQuote, error) {
	attempt := 0
	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (domain.PriceQuote, error) {
		attempt++
		quote, err := s.next.Fetch(ctx)
		if err != nil {
			s.logger.Warn("price fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return quote, err
	})
}

// IsTransient reports whether a fetch error is worth repeating.
// Client side HTTP statuses (except 429) and invalid quotes are final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrInvalidQuote) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}
	return true
}
