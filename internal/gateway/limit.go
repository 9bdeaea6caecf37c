package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

type limitedSender struct {
	Sender
	lim *rate.Limiter
}

// Limited throttles s to perSec sends per second (burst perSec). Callers block
// until a token is available or ctx ends.
func Limited(s Sender, perSec int) Sender {
	perSec = max(1, perSec)
	return &limitedSender{Sender: s, lim: rate.NewLimiter(rate.Limit(perSec), perSec)}
}

func (l *limitedSender) Send(ctx context.Context, e Email) error {
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	return l.Sender.Send(ctx, e)
}
