package prompts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirm asks question on out and reads a y/N answer from in.
// Anything but y or yes, including a read error, is a no.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// PromptPassword prompts for a password (hidden input)
func PromptPassword(out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
