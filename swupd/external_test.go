package swupd

import (
	"bytes"
	"io"
	"os/exec"
	"strings"
	"testing"
)

func TestExternalWriter(t *testing.T) {
	trPath, err := exec.LookPath("tr")
	if err != nil {
		t.Skip("couldn't find tr program used for test")
	}

	var output bytes.Buffer
	w, err := NewExternalWriter(&output, trPath, "e", "a")
	if err != nil {
		t.Fatal(err)
	}

	input := "Hello, world!"
	expected := strings.ReplaceAll(input, "e", "a")

	if _, err := w.Write([]byte(input)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if output.String() != expected {
		t.Fatalf("got %q, but want %q", output.String(), expected)
	}
}

func TestExternalReader(t *testing.T) {
	trPath, err := exec.LookPath("tr")
	if err != nil {
		t.Skip("couldn't find tr program used for test")
	}

	input := "Hello, world!"
	expected := strings.ReplaceAll(input, "e", "a")

	r, err := NewExternalReader(strings.NewReader(input), trPath, "e", "a")
	if err != nil {
		t.Fatal(err)
	}

	output, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(output) != expected {
		t.Fatalf("got %q, but want %q", string(output), expected)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExternalReaderNonexistentProgram(t *testing.T) {
	_, err := NewExternalReader(strings.NewReader("x"), "definitely-not-a-real-program-xyz")
	if err == nil {
		t.Error("expected error starting a nonexistent program")
	}
}
