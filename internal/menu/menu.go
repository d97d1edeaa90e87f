// Package menu implements the interactive numbered menu shown when questcap
// is started without a subcommand.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Choice is a menu entry.
type Choice int

const (
	ChoiceInvalid Choice = iota
	ChoiceScreenshot
	ChoiceRecord
	ChoiceStream
	ChoiceView
	ChoiceInfo
	ChoiceExit
)

// Actions are the operations the menu dispatches to. Errors are reported to
// the user and the menu keeps running.
type Actions interface {
	Screenshot(ctx context.Context, name string) error
	Record(ctx context.Context, name string, seconds int) error
	Stream(ctx context.Context, fps float64) error
	View(ctx context.Context, fps, scale float64) error
	Info(ctx context.Context) error
	Exit(ctx context.Context) error
}

// Defaults are offered when the user just presses Enter.
type Defaults struct {
	RecordSeconds int
	FPS           float64
	Scale         float64
}

// Prompter reads answers line by line from in and writes prompts to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter over the given streams.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prints question and returns the trimmed answer. At end of input it
// returns whatever was typed along with io.EOF.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return line, err
	}
	return line, nil
}

// Printf writes to the prompter's output.
func (p *Prompter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}

// AskConnection asks for USB or WiFi. It returns the host to connect to, or
// "" for USB.
func (p *Prompter) AskConnection() (string, error) {
	kind, err := p.Ask("Connect via (1) USB or (2) WiFi? Enter 1 or 2: ")
	if err != nil {
		return "", err
	}
	if kind != "2" {
		return "", nil
	}
	return p.Ask("Enter Quest IP address: ")
}

// AskChoice prints the options and reads one choice.
func (p *Prompter) AskChoice(d Defaults) (Choice, error) {
	p.Printf("\nOptions:\n")
	p.Printf("1. Take screenshot\n")
	p.Printf("2. Record screen (%d seconds)\n", d.RecordSeconds)
	p.Printf("3. Start live stream (save frames)\n")
	p.Printf("4. View screen in real-time\n")
	p.Printf("5. Get device info\n")
	p.Printf("6. Disconnect and exit\n")

	answer, err := p.Ask("Enter your choice (1-6): ")
	if err != nil {
		return ChoiceInvalid, err
	}
	return ParseChoice(answer), nil
}

// ParseChoice maps "1".."6" to a Choice.
func ParseChoice(s string) Choice {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < int(ChoiceScreenshot) || n > int(ChoiceExit) {
		return ChoiceInvalid
	}
	return Choice(n)
}

// ParseCount parses a positive whole number, returning def for anything else.
func ParseCount(s string, def int) int {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// ParsePositive parses a positive decimal such as "0.25", returning def for
// anything else.
func ParsePositive(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return def
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

// Run shows the menu until the user exits, ctx is cancelled or input ends.
func Run(ctx context.Context, p *Prompter, d Defaults, a Actions) error {
	for ctx.Err() == nil {
		choice, err := p.AskChoice(d)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return a.Exit(ctx)
			}
			return err
		}

		err = dispatch(ctx, p, d, a, choice)
		switch {
		case err == nil:
		case errors.Is(err, errExit):
			return nil
		case errors.Is(err, io.EOF):
			return a.Exit(ctx)
		default:
			p.Printf("Error: %v\n", err)
		}
	}
	return ctx.Err()
}

var errExit = errors.New("exit")

func dispatch(ctx context.Context, p *Prompter, d Defaults, a Actions, choice Choice) error {
	switch choice {
	case ChoiceScreenshot:
		name, err := p.Ask("Enter filename (or press Enter for auto): ")
		if err != nil {
			return err
		}
		return a.Screenshot(ctx, name)

	case ChoiceRecord:
		name, err := p.Ask("Enter filename (or press Enter for auto): ")
		if err != nil {
			return err
		}
		secs, err := p.Ask(fmt.Sprintf("Enter duration in seconds (default %d): ", d.RecordSeconds))
		if err != nil {
			return err
		}
		return a.Record(ctx, name, ParseCount(secs, d.RecordSeconds))

	case ChoiceStream:
		fps, err := p.Ask(fmt.Sprintf("Enter FPS (default %g): ", d.FPS))
		if err != nil {
			return err
		}
		return a.Stream(ctx, ParsePositive(fps, d.FPS))

	case ChoiceView:
		fps, err := p.Ask(fmt.Sprintf("Enter FPS (default %g): ", d.FPS))
		if err != nil {
			return err
		}
		scale, err := p.Ask(fmt.Sprintf("Enter scale factor (default %g): ", d.Scale))
		if err != nil {
			return err
		}
		return a.View(ctx, ParsePositive(fps, d.FPS), ParsePositive(scale, d.Scale))

	case ChoiceInfo:
		return a.Info(ctx)

	case ChoiceExit:
		if err := a.Exit(ctx); err != nil {
			p.Printf("Error: %v\n", err)
		}
		return errExit

	default:
		p.Printf("Invalid choice. Please enter 1-6.\n")
		return nil
	}
}
