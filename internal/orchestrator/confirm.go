package orchestrator

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TTYConfirmer prompts on an interactive terminal, mirroring the
// `input(...).strip().lower() in ['y', 'yes']` gates the pipeline's
// Python drivers used before running and before continuing past a
// failed stage.
type TTYConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// NewTTYConfirmer returns a confirmer reading from in and writing
// prompts to out.
func NewTTYConfirmer(in io.Reader, out io.Writer) *TTYConfirmer {
	return &TTYConfirmer{In: in, Out: out}
}

func (c *TTYConfirmer) ConfirmRun(provider string, stages []Stage) bool {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	fmt.Fprintf(c.Out, "Run %d stages for %s (%s)? (y/n): ", len(stages), provider, strings.Join(names, " "))
	return c.readYes()
}

func (c *TTYConfirmer) ConfirmContinueAfterFailure(stage string) bool {
	fmt.Fprintf(c.Out, "Stage %s failed. Continue with remaining stages? (y/n): ", stage)
	return c.readYes()
}

func (c *TTYConfirmer) readYes() bool {
	scanner := bufio.NewScanner(c.In)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

var _ Confirmer = (*TTYConfirmer)(nil)
var _ Confirmer = AutoConfirmer{}
