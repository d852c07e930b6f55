// Copyright 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package swupd

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/clearlinux/swupd-go/internal/swudlog"
)

// lockFileName is the advisory lock every mutating operation takes before
// touching StateDir, preventing two swupd invocations (e.g. an interactive
// update and a timer-triggered update) from racing on the cache.
const lockFileName = "swupd_lock"

// Lock is the advisory lock described in §5 Mutual exclusion: exactly one
// mutating operation (update, bundle-add/remove, repair, gc) may hold it at
// a time; read-only operations (search, info) do not need it.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the advisory lock for stateDir without blocking. If
// another process holds it, it returns a *Error with ExitLockBusy
// immediately rather than waiting, matching the external interface's
// fail-fast locking contract.
func AcquireLock(stateDir string) (*Lock, error) {
	path := filepath.Join(stateDir, lockFileName)
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, Wrap(ExitGeneralError, err, "couldn't acquire lock")
	}
	if !ok {
		return nil, NewError(ExitLockBusy, errLockBusy(path))
	}
	swudlog.Debug(swudlog.Lock, "acquired %s", path)
	return &Lock{fl: fl}, nil
}

// Release gives up the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

func errLockBusy(path string) error {
	return lockBusyError{path: path}
}

type lockBusyError struct{ path string }

func (e lockBusyError) Error() string {
	return "another swupd process is holding the lock at " + e.path
}
