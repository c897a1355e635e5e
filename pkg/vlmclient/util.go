package vlmclient

import (
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func openFile(path string) (*os.File, error) {
	return os.Open(path)
}

func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	return b
}
