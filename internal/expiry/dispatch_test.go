package expiry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchPartialFailureIsolation(t *testing.T) {
	t.Parallel()
	recipients := []string{"a@example.com", "b@example.com", "c@example.com"}
	send := func(ctx context.Context, rcpt string, msg Message) error {
		if rcpt == "b@example.com" {
			return errors.New("invalid address")
		}
		return nil
	}

	outcomes := Dispatch(context.Background(), recipients, Message{Subject: "s"}, send)
	require.Len(t, outcomes, 3)
	assert.Equal(t, Outcome{Recipient: "a@example.com", Succeeded: true}, outcomes[0])
	assert.Equal(t, Outcome{Recipient: "b@example.com", ErrorDetail: "invalid address"}, outcomes[1])
	assert.Equal(t, Outcome{Recipient: "c@example.com", Succeeded: true}, outcomes[2])

	rep := Aggregate(ClassifiedSet{}, outcomes, refDay)
	assert.Equal(t, 2, rep.EmailsSent)
	assert.Equal(t, 1, rep.EmailsFailed)
}

func TestDispatchOrderIndependentOfCompletion(t *testing.T) {
	t.Parallel()
	recipients := []string{"slow@example.com", "fast@example.com"}
	send := func(ctx context.Context, rcpt string, msg Message) error {
		if rcpt == "slow@example.com" {
			time.Sleep(30 * time.Millisecond)
		}
		return nil
	}
	outcomes := Dispatch(context.Background(), recipients, Message{}, send)
	assert.Equal(t, "slow@example.com", outcomes[0].Recipient)
	assert.Equal(t, "fast@example.com", outcomes[1].Recipient)
}

func TestDispatchRunsConcurrently(t *testing.T) {
	t.Parallel()
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	send := func(ctx context.Context, rcpt string, msg Message) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return nil
	}
	done := make(chan []Outcome)
	go func() {
		done <- Dispatch(context.Background(), []string{"a", "b", "c"}, Message{}, send)
	}()
	require.Eventually(t, func() bool { return peak.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)
	outcomes := <-done
	assert.Len(t, outcomes, 3)
}

func TestDispatchRecoversPanics(t *testing.T) {
	t.Parallel()
	send := func(ctx context.Context, rcpt string, msg Message) error {
		if rcpt == "boom" {
			panic("gateway exploded")
		}
		return nil
	}
	outcomes := Dispatch(context.Background(), []string{"boom", "ok"}, Message{}, send)
	assert.False(t, outcomes[0].Succeeded)
	assert.Equal(t, "panic: gateway exploded", outcomes[0].ErrorDetail)
	assert.True(t, outcomes[1].Succeeded)
}

func TestDispatchNoRecipients(t *testing.T) {
	t.Parallel()
	outcomes := Dispatch(context.Background(), nil, Message{}, func(context.Context, string, Message) error {
		t.Fatal("send must not be called")
		return nil
	})
	assert.Empty(t, outcomes)
}
