package adapter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/xenosun/codeBeamer-offline-client/internal/port"
)

// ConsoleNotifier surfaces alerts and choices on the terminal. In
// non-interactive mode every failed request is ignored and every
// confirmation gate answered with no, so scripted invocations never hang
// on a prompt.
type ConsoleNotifier struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewConsoleNotifier creates a terminal notifier reading answers from in.
func NewConsoleNotifier(in io.Reader, out io.Writer, interactive bool) *ConsoleNotifier {
	return &ConsoleNotifier{in: bufio.NewReader(in), out: out, interactive: interactive}
}

func (n *ConsoleNotifier) NotifyError(header, message string) {
	fmt.Fprintf(n.out, "%s: %s\n", header, message)
}

func (n *ConsoleNotifier) ServerRequestFailed(header, message string) port.Choice {
	fmt.Fprintf(n.out, "%s: %s\n", header, message)
	if !n.interactive {
		return port.ChoiceIgnore
	}
	fmt.Fprint(n.out, "Retry? [r/i] ")
	answer, err := n.in.ReadString('\n')
	if err != nil {
		return port.ChoiceIgnore
	}
	if strings.HasPrefix(strings.TrimSpace(strings.ToLower(answer)), "r") {
		return port.ChoiceRetry
	}
	return port.ChoiceIgnore
}

func (n *ConsoleNotifier) Confirm(header, message string) bool {
	fmt.Fprintf(n.out, "%s: %s\n", header, message)
	if !n.interactive {
		return false
	}
	fmt.Fprint(n.out, "Continue? [y/n] ")
	answer, err := n.in.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(answer)), "y")
}
