// Package prompter asks the user for confirmation and input on the terminal
package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from in and writes prompts to out
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // -1 when in is not a terminal
}

// New creates a prompter over in and out
func New(in io.Reader, out io.Writer) *Prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Prompter{in: bufio.NewReader(in), out: out, fd: fd}
}

// Stdio is a prompter over the process's stdin and stdout
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

// Interactive reports whether answers come from a terminal
func (p *Prompter) Interactive() bool {
	return p.fd >= 0
}

// String prompts for one line of input
func (p *Prompter) String(label string) (string, error) {
	fmt.Fprint(p.out, label)
	input, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// Secret prompts for input without echo when reading from a terminal
func (p *Prompter) Secret(label string) (string, error) {
	if p.fd < 0 {
		return p.String(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm asks a yes/no question. Anything but y or yes is no.
func (p *Prompter) Confirm(label string) (bool, error) {
	answer, err := p.String(label + " (y/n) ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
