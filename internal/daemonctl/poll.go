package daemonctl

import (
	"errors"
	"time"
)

const pollInterval = 200 * time.Millisecond

var errPollTimeout = errors.New("timed out")

// pollUntil calls probe every pollInterval until it reports done or timeout
// elapses. The last probe error is returned on timeout, errPollTimeout if
// there was none.
func pollUntil(timeout time.Duration, probe func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var last error
	for {
		done, err := probe()
		if done {
			return nil
		}
		if err != nil {
			last = err
		}
		if !time.Now().Add(pollInterval).Before(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	if last == nil {
		last = errPollTimeout
	}
	return last
}
