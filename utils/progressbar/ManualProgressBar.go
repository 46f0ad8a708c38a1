// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ManualProgressBar implement progress bar functionality that must
// be manually managed. That is, the Display() function must be called
// whenever an updated progress bar should be printed to the screen.
//
// ManualProgressBar does not use concurrency.
type ManualProgressBar struct {
	width           float64
	maxProgress     float64
	currentProgress float64
	bar             strings.Builder
	startTime       time.Time

	description string
	postfix     string
	out         io.Writer
}

// NewManualProgressBar returns a new ManualProgressBar printed to
// stdout, prefixed with description
func NewManualProgressBar(description string, width,
	max int) *ManualProgressBar {
	return &ManualProgressBar{
		width:           float64(width),
		maxProgress:     float64(max),
		currentProgress: 0,
		startTime:       time.Now(),
		description:     description,
		out:             os.Stdout,
	}
}

// SetOutput sets the writer the progress bar is printed to
func (p *ManualProgressBar) SetOutput(w io.Writer) {
	p.out = w
}

// SetPostfix sets the text printed after the progress bar
func (p *ManualProgressBar) SetPostfix(postfix string) {
	p.postfix = postfix
}

// Increment increments the interal progress counter. Each time an
// iteration is performed, Increment should be called.
func (p *ManualProgressBar) Increment() {
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Progress returns the number of increments so far
func (p *ManualProgressBar) Progress() int {
	return int(p.currentProgress)
}

// Done returns whether the progress bar has reached 100%
func (p *ManualProgressBar) Done() bool {
	return p.currentProgress >= p.maxProgress
}

// String returns the progress bar as it would be displayed
func (p *ManualProgressBar) String() string {
	p.bar.Reset()
	if p.description != "" {
		p.bar.WriteString(p.description + " ")
	}
	p.bar.WriteString("|")

	frac := 1.0
	if p.maxProgress > 0 {
		frac = p.currentProgress / p.maxProgress
	}
	currentProg := frac * p.width
	for i := 0.0; i < currentProg; i++ {
		p.bar.WriteString("█")
	}
	for i := currentProg; i < p.width; i++ {
		p.bar.WriteString(" ")
	}
	p.bar.WriteString(fmt.Sprintf("| [%.2f%v | elapsed: %v]", frac*100, "%",
		time.Since(p.startTime).Truncate(time.Second)))
	if p.postfix != "" {
		p.bar.WriteString(" " + p.postfix)
	}
	return p.bar.String()
}

// Display displays the progress bar on the screen, overwriting the
// previously displayed bar
func (p *ManualProgressBar) Display() {
	fmt.Fprintf(p.out, "\n\033[1A\033[K%v", p.String())
}

// Close moves the output past the progress bar
func (p *ManualProgressBar) Close() {
	fmt.Fprintln(p.out)
}
