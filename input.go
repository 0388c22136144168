package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// maxInputBytes bounds text read from files or stdin.
const maxInputBytes = 10 << 20

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput returns --text if set, else the named file, else stdin when it
// is "-" or a pipe.
func readInput(text string, args []string) (string, error) {
	if text != "" {
		if len(args) > 0 {
			return "", errors.New("use either --text or a FILE argument, not both")
		}
		return text, nil
	}

	var r io.Reader
	switch {
	case len(args) == 1 && args[0] != "-":
		path, err := homedir.Expand(args[0])
		if err != nil {
			return "", fmt.Errorf("unable to expand path: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("unable to open file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		r = f
	case len(args) == 1:
		r = os.Stdin
	default:
		pipe, err := stdinIsPipe()
		if err != nil {
			return "", err
		}
		if !pipe {
			return "", errors.New("no input: pass --text, a FILE, or pipe text on stdin")
		}
		r = os.Stdin
	}

	b, err := io.ReadAll(io.LimitReader(r, maxInputBytes+1))
	if err != nil {
		return "", fmt.Errorf("unable to read input: %w", err)
	}
	if len(b) > maxInputBytes {
		return "", fmt.Errorf("input exceeds %d bytes", maxInputBytes)
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}
