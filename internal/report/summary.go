package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary is the outcome of one roster update or alt recompute.
type Summary struct {
	Members    int
	Characters int
	Alts       int
	Mains      int
	Failed     int
	Duration   time.Duration
}

// WriteSummary prints the run summary banner.
func WriteSummary(w io.Writer, s Summary) error {
	rule := strings.Repeat("=", 50)
	_, err := fmt.Fprintf(w,
		"\n%s\nProcessing completed in %.2f seconds\nMembers: %d\nCharacters: %d\nAlts found: %d\nMain characters: %d\nFailed fetches: %d\n%s\n",
		rule, s.Duration.Seconds(), s.Members, s.Characters, s.Alts, s.Mains, s.Failed, rule,
	)
	return err
}
