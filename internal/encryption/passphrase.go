package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a passphrase prompt needs a terminal and stdin is not one.
var ErrNoTerminal = fmt.Errorf("no terminal available for passphrase prompt")

// ReadPassphrase prompts on stderr and reads a passphrase from the terminal
// with echo disabled. When confirm is set the passphrase is asked for twice.
func ReadPassphrase(prompt string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}

	first, err := promptOnce(fd, prompt)
	if err != nil {
		return "", err
	}
	if !confirm {
		return first, nil
	}
	second, err := promptOnce(fd, "Confirm "+prompt)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

func promptOnce(fd int, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt+": ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(data), nil
}

// ReadPassphraseFile reads a passphrase from path, or from r when path is "-".
// Trailing newlines are stripped.
func ReadPassphraseFile(path string, r io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading passphrase file: %w", err)
	}
	data = bytes.TrimRight(data, "\r\n")
	if len(data) == 0 {
		return "", fmt.Errorf("passphrase file is empty")
	}
	return string(data), nil
}
