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

// Package procutil wraps external command execution the way the mixer
// tooling does: a context-aware Run with captured stderr, and Silent /
// Timeout variants for cases that differ only in verbosity or deadline.
// It is the collaborator used to shell out to bspatch and openssl.
package procutil

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// Run executes cmdname with args, returning stdout. Any failure is wrapped
// with the captured stderr for diagnostics.
func Run(cmdname string, args ...string) ([]byte, error) {
	return RunContext(context.Background(), cmdname, args...)
}

// RunContext is Run bound to a cancellable context; Run calls it with
// context.Background().
func RunContext(ctx context.Context, cmdname string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, cmdname, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), errors.Wrapf(err, "%s: %s", cmdname, stderr.String())
	}
	return stdout.Bytes(), nil
}

// RunTimeout is RunContext bounded by a duration, for subprocesses that
// could hang on malformed input.
func RunTimeout(timeout time.Duration, cmdname string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return RunContext(ctx, cmdname, args...)
}

// RunSilent runs cmdname discarding stdout, returning only an error
// (with captured stderr) on failure. Used where the exit code is all that
// matters, such as the openssl signature check.
func RunSilent(cmdname string, args ...string) error {
	_, err := Run(cmdname, args...)
	return err
}

// LookPath reports whether the named external dependency is available on
// PATH.
func LookPath(cmdname string) bool {
	_, err := exec.LookPath(cmdname)
	return err == nil
}
