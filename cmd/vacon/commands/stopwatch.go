package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const stopwatchPeriod = 10 * time.Second

// stopwatch: a console clock to point a camera at. A screenshot with both
// the clock and its video gives a rough end-to-end video latency.
func stopwatchCmd() *cobra.Command {
	var fps int
	cmd := &cobra.Command{
		Use:   "stopwatch",
		Short: "Show a big console stopwatch for latency measurements",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fps <= 0 {
				return fmt.Errorf("bad fps %d", fps)
			}
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt)
			defer signal.Stop(stop)

			ticker := time.NewTicker(time.Second / time.Duration(fps))
			defer ticker.Stop()

			start := time.Now()
			for frame := 1; ; frame++ {
				now := time.Now()
				if now.Sub(start) > stopwatchPeriod {
					start = now
				}
				drawFrame(cmd.OutOrStdout(), frame, now.Sub(start))
				select {
				case <-ticker.C:
				case <-stop:
					return nil
				}
			}
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 30, "frames per second")
	return cmd
}

func drawFrame(w io.Writer, frame int, elapsed time.Duration) {
	_, _ = fmt.Fprintf(w, "\033[2J\033[H\n %d\n\n %s\n", frame, spaced(elapsed))
}

// spaced formats seconds with 6 digits after the point,
// a space between every char.
func spaced(d time.Duration) string {
	s := fmt.Sprintf("%.6f", d.Seconds())
	return strings.Join(strings.Split(s, ""), " ")
}
