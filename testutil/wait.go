package testutil

import (
	"time"

	"github.com/pkg/errors"
)

type testFn func() (bool, error)
type errorFn func(error)

const (
	baseWait = 1 * time.Millisecond
	maxWait  = 100 * time.Millisecond
)

// WaitForResult polls test with growing pauses until it reports success or about five seconds
// pass, then calls error with the last error seen.
func WaitForResult(try testFn, fail errorFn) {
	var err error
	wait := baseWait
	for retries := 100; retries > 0; retries-- {
		var success bool
		success, err = try()
		if success {
			return
		}

		time.Sleep(wait)
		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
	if err == nil {
		err = errors.New("timed out waiting for result")
	}
	fail(err)
}
