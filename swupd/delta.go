// Copyright 2018 Intel Corporation
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
	"os"

	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-go/internal/procutil"
)

// ApplyDelta applies the bsdiff-style binary patch at deltaPath to fromPath,
// writing the result to toPath. Deltas are a performance optimization only:
// callers must fall back to a fullfile fetch whenever this returns an
// error, never treat a delta failure itself as fatal to the update.
func ApplyDelta(fromPath, deltaPath, toPath string) error {
	if _, err := procutil.Run("bspatch", fromPath, toPath, deltaPath); err != nil {
		return errors.Wrapf(err, "bspatch failed applying %s to %s", deltaPath, fromPath)
	}
	return nil
}

// ApplyFileDelta applies a content delta for file f (whose DeltaPeer names
// the on-disk "from" candidate), then verifies the result's fingerprint
// matches f.Hash. On fingerprint mismatch it removes toPath and returns an
// error so the caller falls back to a fullfile fetch instead of installing
// a corrupt result.
func ApplyFileDelta(f *File, fromPath, deltaPath, toPath string) error {
	if f.isUnsupportedTypeChange() {
		return errors.New("delta applier cannot express a directory kind change")
	}

	if err := ApplyDelta(fromPath, deltaPath, toPath); err != nil {
		return err
	}

	if err := copyXattrs(toPath, fromPath); err != nil {
		return errors.Wrap(err, "couldn't copy xattrs onto delta result")
	}

	got, err := FingerprintFile(toPath)
	if err != nil {
		return err
	}
	if !HashEquals(got, f.Hash) {
		_ = os.Remove(toPath)
		return errors.Errorf("delta result for %s has fingerprint %s, want %s", f.Name, got, f.Hash)
	}
	return nil
}
