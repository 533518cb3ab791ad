package caption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ByLCY/memeforge/apperr"
)

// ErrRateLimited 表示超出客户端配额，总是与 apperr.ErrSuggestion 一起返回。
var ErrRateLimited = errors.New("rate limit exceeded")

// Limited 为 Suggester 加上客户端限流，超出配额时立即返回 ErrSuggestion。
type Limited struct {
	next    Suggester
	limiter *rate.Limiter
}

var _ Suggester = (*Limited)(nil)

// NewLimited 每分钟最多放行 perMinute 次请求，突发上限同为 perMinute。
// perMinute <= 0 时不限流。
func NewLimited(next Suggester, perMinute int) *Limited {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (l *Limited) Suggest(ctx context.Context, image []byte) (Suggestion, error) {
	if !l.limiter.Allow() {
		return Suggestion{}, fmt.Errorf("%w: %w", apperr.ErrSuggestion, ErrRateLimited)
	}
	return l.next.Suggest(ctx, image)
}
