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
	"github.com/pkg/errors"
)

// ExitCode is the process exit status an operation should surface, mirroring
// the closed table of exit codes callers of the CLI rely on for scripting.
type ExitCode int

// Exit codes returned by cmd/swupd, matching the external interface's
// scripting contract.
const (
	ExitOK ExitCode = iota
	ExitGeneralError
	ExitAlreadyUpToDate
	ExitLockBusy
	ExitManifestMissing
	ExitSignatureInvalid
	ExitDiskSpace
	ExitNetwork
	ExitRepairNeeded
	ExitBadConfig
)

// Error wraps an underlying cause with the ExitCode the CLI should exit
// with, the way delta.go and helpers.go wrap subprocess and I/O failures
// with github.com/pkg/errors so the original stack is never lost.
type Error struct {
	Code ExitCode
	err  error
}

// NewError wraps err with the given exit code. A nil err still produces a
// usable Error carrying only the code, for cases with no underlying cause.
func NewError(code ExitCode, err error) *Error {
	return &Error{Code: code, err: err}
}

// Errorf builds an Error from a format string, analogous to errors.Errorf.
func Errorf(code ExitCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, err: errors.Errorf(format, args...)}
}

// Wrap attaches message context to err before tagging it with code.
func Wrap(code ExitCode, err error, message string) *Error {
	return &Error{Code: code, err: errors.Wrap(err, message)}
}

func (e *Error) Error() string {
	if e.err == nil {
		return "swupd error"
	}
	return e.err.Error()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As and for
// errors.Cause (github.com/pkg/errors) to keep walking the chain.
func (e *Error) Unwrap() error {
	return e.err
}

// CodeOf extracts the ExitCode from err if it (or something it wraps) is a
// *Error, defaulting to ExitGeneralError for any other error and ExitOK for
// nil, the way cmd/swupd decides what to pass to os.Exit.
func CodeOf(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	var swerr *Error
	if errors.As(err, &swerr) {
		return swerr.Code
	}
	return ExitGeneralError
}
