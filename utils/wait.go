package utils

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

// ErrWaitTimeout is returned when a readiness condition never became true
// within its bounded timeout.
var ErrWaitTimeout = errors.New("condition not met before timeout")

// WaitFor polls cond every interval until it returns true, the timeout
// elapses, or ctx is cancelled. This is the readiness-wait primitive:
// condition-based with a hard upper bound, as opposed to the fixed
// politeness delay of Pacer. A non-nil error from cond aborts the wait.
func WaitFor(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrWaitTimeout
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TitleCase normalizes a name so that each word starts upper-case with the
// remainder lower-case ("GOODYEAR" -> "Goodyear", "all season" ->
// "All Season"). Dimension lookups rely on this so case variance across
// retailer pages never creates duplicate rows.
func TitleCase(s string) string {
	out := []rune(strings.TrimSpace(s))
	startOfWord := true
	for i, r := range out {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			startOfWord = true
			continue
		}
		if startOfWord {
			out[i] = unicode.ToUpper(r)
			startOfWord = false
		} else {
			out[i] = unicode.ToLower(r)
		}
	}
	return string(out)
}
