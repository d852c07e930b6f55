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
	"bytes"
	"io"
	"os/exec"

	"github.com/pkg/errors"
)

// ExternalWriter filters a Writer through an external program: every Write
// call feeds the program's stdin, and its stdout is streamed into the
// wrapped Writer.
type ExternalWriter struct {
	cmd    *exec.Cmd
	input  io.WriteCloser
	stderr bytes.Buffer
}

// NewExternalWriter starts program as a filter in front of w.
func NewExternalWriter(w io.Writer, program string, args ...string) (*ExternalWriter, error) {
	ew := &ExternalWriter{cmd: exec.Command(program, args...)}
	ew.cmd.Stdout = w
	ew.cmd.Stderr = &ew.stderr

	input, err := ew.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	ew.input = input

	if err := ew.cmd.Start(); err != nil {
		_ = input.Close()
		return nil, errors.Wrapf(err, "couldn't start %s", program)
	}
	return ew, nil
}

func (ew *ExternalWriter) Write(p []byte) (int, error) {
	return ew.input.Write(p)
}

// Close finishes writing to the filter program and waits for it to exit.
func (ew *ExternalWriter) Close() error {
	if err := ew.input.Close(); err != nil {
		return err
	}
	if err := ew.cmd.Wait(); err != nil {
		return errors.Wrapf(err, "%s: %s", ew.cmd.Path, ew.stderr.String())
	}
	return nil
}

// ExternalReader filters a Reader through an external program: the
// program's stdin is fed from the wrapped Reader, and Read calls return
// bytes from its stdout. Used for unxz/zstd -d decompression.
type ExternalReader struct {
	cmd    *exec.Cmd
	output io.ReadCloser
	stderr bytes.Buffer
}

// NewExternalReader starts program as a filter reading from r.
func NewExternalReader(r io.Reader, program string, args ...string) (*ExternalReader, error) {
	er := &ExternalReader{cmd: exec.Command(program, args...)}
	er.cmd.Stdin = r
	er.cmd.Stderr = &er.stderr

	output, err := er.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	er.output = output

	if err := er.cmd.Start(); err != nil {
		_ = output.Close()
		return nil, errors.Wrapf(err, "couldn't start %s", program)
	}
	return er, nil
}

func (er *ExternalReader) Read(p []byte) (int, error) {
	return er.output.Read(p)
}

// Close waits for the filter program to exit.
func (er *ExternalReader) Close() error {
	if err := er.cmd.Wait(); err != nil {
		return errors.Wrapf(err, "%s: %s", er.cmd.Path, er.stderr.String())
	}
	return nil
}
