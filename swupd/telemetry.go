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
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Severities a TelemetryRecord carries; critical records mark integrity
// faults such as a consolidation hash conflict and do not by themselves
// abort the operation, info records report a completed transaction's byte
// totals.
const (
	SeverityCritical = "critical"
	SeverityInfo     = "info"
)

// TelemetryDir is the statedir subdirectory telemetry records are written
// under, named "<severity>.<class>.<rand>" per file.
const TelemetryDir = "telemetry"

// EmitTelemetry writes rec to stateDir/telemetry/<severity>.<class>.<rand>.
// Actual transport of telemetry records off the host is an external
// collaborator's job (see spec Non-goals); this only satisfies the on-disk
// layout contract so a collector can pick records up from the statedir.
func EmitTelemetry(stateDir string, rec TelemetryRecord) error {
	dir := filepath.Join(stateDir, TelemetryDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "couldn't create telemetry directory")
	}

	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return errors.Wrap(err, "couldn't generate telemetry record name")
	}
	name := rec.Severity + "." + rec.Class + "." + hex.EncodeToString(suffix[:])

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.Wrap(err, "couldn't create telemetry record")
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(rec.Path + "\n" + rec.Detail + "\n"); err != nil {
		return errors.Wrap(err, "couldn't write telemetry record")
	}
	return nil
}
