package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptRefreshToken reads a refresh token interactively. The input is
// hidden when stdin is a terminal and read as a plain line otherwise, so
// piped input still works.
func PromptRefreshToken() (string, error) {
	fmt.Fprint(os.Stderr, "pixiv refresh token: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			return "", ErrInvalidCredential
		}
		return token, nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", ErrInvalidCredential
	}
	return token, nil
}
