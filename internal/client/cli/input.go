package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// GetToken prompts on w for an access token and reads it from the terminal
// without echo.
func GetToken(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Enter access token: "); err != nil {
		return "", err
	}
	tok, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(tok)), nil
}

// ParseTarget splits "local=remote". Without "=" the remote name is left
// empty and defaults to the local base name.
func ParseTarget(arg string) (local, remote string) {
	local, remote, _ = strings.Cut(arg, "=")
	return local, remote
}
