// Package resilience provides bounded retry with linear or exponential
// backoff for operations that talk to unreliable collaborators such as
// SMTP relays.
//
//	retrier := resilience.NewRetrier(resilience.RetryConfig{
//		MaxAttempts:     3,
//		InitialDelay:    500 * time.Millisecond,
//		Backoff:         resilience.BackoffLinear,
//		RetryableErrors: mailer.IsRetryable,
//	})
//	err := retrier.Execute(ctx, func(ctx context.Context) error {
//		return transport.Send(ctx, msg)
//	})
//
// Only errors accepted by RetryableErrors are retried. Everything else is
// returned after the first attempt.
package resilience
