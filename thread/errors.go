package thread

import (
	"github.com/tezrry/kthread/pkg/errors"
)

// SpawnError is returned by Spawn. It matches errors.ErrSpawn as well as
// the cause.
type SpawnError struct {
	Cause error
}

func (e *SpawnError) Error() string {
	return errors.ErrSpawn.Error() + ": " + e.Cause.Error()
}

func (e *SpawnError) Unwrap() []error {
	return []error{errors.ErrSpawn, e.Cause}
}
