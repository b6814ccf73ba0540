package itemsync

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// StdinPrompter is the single-threaded CLI Prompter: it prints the
// provider's instructions and blocks until the user presses Enter.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewStdinPrompter returns a prompter bound to the process stdin/stdout.
func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{In: os.Stdin, Out: os.Stdout}
}

// Ack prints the prompt and waits for a newline.
func (p *StdinPrompter) Ack(instructions, url string) error {
	if instructions != "" {
		fmt.Fprintf(p.Out, "Instructions: %s\n", instructions)
	}
	if url != "" {
		fmt.Fprintf(p.Out, "Open this URL to continue: %s\n", url)
	}
	fmt.Fprint(p.Out, "Press Enter to continue...")

	reader := bufio.NewReader(p.In)
	if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("reading acknowledgment: %w", err)
	}
	fmt.Fprintln(p.Out)
	return nil
}
