package expiry

import (
	"context"
	"fmt"
	"sync"
)

// SendFunc delivers msg to one recipient. A non-nil error is recorded as that
// recipient's failure detail.
type SendFunc func(ctx context.Context, recipient string, msg Message) error

// Dispatch sends msg to every recipient concurrently and waits for all of
// them. Outcome i always belongs to recipients[i]; one failure (or panic)
// never affects another recipient. There are no retries.
func Dispatch(ctx context.Context, recipients []string, msg Message, send SendFunc) []Outcome {
	outcomes := make([]Outcome, len(recipients))
	var wg sync.WaitGroup
	wg.Add(len(recipients))
	for i, rcpt := range recipients {
		i, rcpt := i, rcpt // per-iteration copies (pre-Go 1.22 loop semantics)
		go func() {
			defer wg.Done()
			outcomes[i] = sendOne(ctx, rcpt, msg, send)
		}()
	}
	wg.Wait()
	return outcomes
}

func sendOne(ctx context.Context, rcpt string, msg Message, send SendFunc) (out Outcome) {
	out.Recipient = rcpt
	defer func() {
		if r := recover(); r != nil {
			out.Succeeded = false
			out.ErrorDetail = fmt.Sprintf("panic: %v", r)
		}
	}()
	if err := send(ctx, rcpt, msg); err != nil {
		out.ErrorDetail = err.Error()
		return out
	}
	out.Succeeded = true
	return out
}
