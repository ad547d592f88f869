// Package report renders sweep results for humans (fixed-width text, plots)
// and machines (JSON).
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
)

// Banner announces the expected pace of a sweep before it starts.
func Banner(step time.Duration, steps int) string {
	return fmt.Sprintf("Design run rate is %.1f seconds per line, %.0f s total",
		step.Seconds(), step.Seconds()*float64(steps))
}

// Line formats one sweep point: the control value followed by its settled
// readings, e.g. "61440  +1.234 +1.236 +1.235 ppm".
func Line(p calibration.SweepPoint, discard int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%5d ", p.Value)
	for _, x := range p.Settled(discard) {
		fmt.Fprintf(&b, " %+.3f", x)
	}
	b.WriteString(" ppm")
	return b.String()
}

// Text writes sweep output line by line as points arrive.
type Text struct {
	w       io.Writer
	discard int
	bold    *color.Color
}

// NewText returns a Text writing to w. Headers are colored only when w is a
// terminal.
func NewText(w io.Writer, discard int) *Text {
	bold := color.New(color.Bold)
	if !isTerminal(w) {
		bold.DisableColor()
	}
	return &Text{w: w, discard: discard, bold: bold}
}

// Header prints the run description and the banner.
func (t *Text) Header(ch calibration.Channel, mode calibration.Mode, step time.Duration, steps int) error {
	if _, err := t.bold.Fprintf(t.w, "Scanning %s (%s counter)\n", ch, mode); err != nil {
		return err
	}
	_, err := fmt.Fprintln(t.w, Banner(step, steps))
	return err
}

// Point prints one sweep point.
func (t *Text) Point(p calibration.SweepPoint) error {
	_, err := fmt.Fprintln(t.w, Line(p, t.discard))
	return err
}

// Result prints every point of res.
func (t *Text) Result(res *calibration.SweepResult) error {
	for _, p := range res.Points {
		if err := t.Point(p); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
