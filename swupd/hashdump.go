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

// HashDump computes the fingerprint of an arbitrary on-disk path without
// reference to any manifest, the diagnostic building block behind the
// `swupd hashdump` subcommand. Unlike the staging/diagnose paths it never
// interns the result, since a one-off diagnostic lookup shouldn't grow the
// process-lifetime intern table.
func HashDump(path string) (string, error) {
	return GetFingerprintForFile(path)
}
