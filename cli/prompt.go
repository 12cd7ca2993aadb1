package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// Quit is the extra choice Choose offers to leave the loop.
const Quit = "[Quit]"

// ErrQuit is returned by Choose when the user picks Quit or presses ^C.
var ErrQuit = errors.New("quit")

// Prompter runs promptui prompts against the given streams.
type Prompter struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// NewPrompter returns a Prompter bound to the process terminal.
func NewPrompter() *Prompter {
	return &Prompter{Stdin: os.Stdin, Stdout: os.Stdout}
}

// Choose asks the user to pick one of choices. Typing filters the list by
// case-insensitive prefix.
func (p *Prompter) Choose(label string, choices []string) (string, error) {
	items := append(append([]string{}, choices...), Quit)

	sel := &promptui.Select{
		Label:    label,
		Items:    items,
		Searcher: prefixSearcher(items),
		Stdin:    p.Stdin,
		Stdout:   p.Stdout,
	}

	_, value, err := sel.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", ErrQuit
		}

		return "", err
	}

	if value == Quit {
		return "", ErrQuit
	}

	return value, nil
}

// Confirm asks a yes/no question. Answering no is not an error.
func (p *Prompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func prefixSearcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if input == "" {
			return true
		}

		return strings.HasPrefix(strings.ToLower(items[index]), strings.ToLower(input))
	}
}
