package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// progressSpinner reports the progress of a long running command.
type progressSpinner interface {
	Success(...any)
	Fail(...any)
	UpdateText(string)
}

type progressSpinnerFactory func(text string) (progressSpinner, error)

var spinnerFactory progressSpinnerFactory = func(text string) (progressSpinner, error) {
	spinner, err := pterm.DefaultSpinner.
		WithRemoveWhenDone(false).
		WithText(text).
		Start()
	if err != nil {
		return nil, err
	}
	return spinner, nil
}

var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newProgress animates a spinner on an interactive stdout and prints plain lines anywhere else.
func newProgress(out io.Writer, colored bool, text string) (progressSpinner, error) {
	if out == os.Stdout && colored && isTerminal(os.Stdout) {
		return spinnerFactory(text)
	}
	p := &lineProgress{out: out}
	p.UpdateText(text)
	return p, nil
}

// lineProgress prints one line per distinct update.
type lineProgress struct {
	out  io.Writer
	last string
}

func (p *lineProgress) UpdateText(text string) {
	if text == p.last {
		return
	}
	p.last = text
	printf(p.out, "%s", text)
}

func (p *lineProgress) Success(msg ...any) {
	successf(p.out, "%s", fmt.Sprint(msg...))
}

func (p *lineProgress) Fail(msg ...any) {
	failuref(p.out, "%s", fmt.Sprint(msg...))
}
