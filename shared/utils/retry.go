package utils

import (
	"context"
	"time"
)

// Retry ejecuta fn hasta attempts veces, esperando delay entre intentos.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return RetryIf(ctx, attempts, delay, nil, fn)
}

// RetryIf es Retry, pero solo reintenta los errores para los que retryable
// devuelve true (nil = todos). La espera se duplica en cada intento.
func RetryIf(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay << i)
		select {
		case <-timer.C:
			// espera antes del siguiente intento
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return err
}
