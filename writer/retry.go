package writer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"clawdash/logger"
)

// RetryPolicy bounds how often a mirror publish is attempted.
type RetryPolicy struct {
	MaxTries  uint
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

type retrying struct {
	Publisher
	policy RetryPolicy
	log    *logger.Entry
}

// WithRetry wraps p so each Publish is retried with exponential backoff.
func WithRetry(p Publisher, policy RetryPolicy) Publisher {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	return &retrying{
		Publisher: p,
		policy:    policy,
		log:       logger.GetLogger().WithComponent(p.Name() + "_writer"),
	}
}

func (r *retrying) Publish(ctx context.Context, payload []byte, meta Meta) error {
	policy := backoff.NewExponentialBackOff()
	if r.policy.BaseDelay > 0 {
		policy.InitialInterval = r.policy.BaseDelay
	}
	if r.policy.MaxDelay > 0 {
		policy.MaxInterval = r.policy.MaxDelay
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		return struct{}{}, r.Publisher.Publish(ctx, payload, meta)
	}
	notify := func(err error, next time.Duration) {
		r.log.WithError(err).WithFields(logger.Fields{
			"attempt":  attempt,
			"retry_in": next.String(),
		}).Warn("publish failed, retrying")
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.policy.MaxTries),
		backoff.WithNotify(notify))
	return err
}
