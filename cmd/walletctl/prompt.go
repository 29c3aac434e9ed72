package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var errPasswordMismatch = errors.New("passwords do not match")

// promptSecret reads one line without echo when stdin is a terminal, and a
// plain line otherwise so scripts can pipe input in.
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	s := string(raw)
	clear(raw)
	return s, nil
}

var stdinReader *bufio.Reader

func readLine(r io.Reader) (string, error) {
	if stdinReader == nil {
		stdinReader = bufio.NewReader(r)
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// password returns the password from --password-file, or prompts for it.
func password(ctx *cli.Context, prompt string) (string, error) {
	if path := ctx.Path(passwordFileFlag.Name); path != "" {
		return passwordFromFile(path)
	}
	return promptSecret(prompt)
}

// newPassword is like password but asks twice when prompting.
func newPassword(ctx *cli.Context) (string, error) {
	if path := ctx.Path(passwordFileFlag.Name); path != "" {
		return passwordFromFile(path)
	}
	return promptNewPassword()
}

func promptNewPassword() (string, error) {
	pw, err := promptSecret("New password: ")
	if err != nil {
		return "", err
	}
	again, err := promptSecret("Repeat password: ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errPasswordMismatch
	}
	return pw, nil
}

func passwordFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read password file: %w", err)
	}
	defer clear(data)
	first, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimRight(first, "\r"), nil
}
