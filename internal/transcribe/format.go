package transcribe

import (
	"fmt"
	"strings"
)

// FormatPlain returns the bare transcript text.
func FormatPlain(t Transcript) string {
	return strings.TrimSpace(t.Text)
}

// FormatTimestamps renders one "[MM:SS - MM:SS] text" line per segment.
func FormatTimestamps(t Transcript) string {
	var lines []string
	for _, seg := range t.Segments {
		lines = append(lines, fmt.Sprintf("%s %s", timestamp(seg.Start, seg.End), seg.Text))
	}
	return strings.Join(lines, "\n")
}

// FormatSpeakers renders speaker-labelled lines with timestamps, falling
// back to the plain text when no segments carry speakers.
func FormatSpeakers(t Transcript) string {
	diarized := false
	for _, seg := range t.Segments {
		if seg.Speaker != "" {
			diarized = true
			break
		}
	}
	if !diarized {
		return FormatPlain(t)
	}
	var lines []string
	for _, seg := range t.Segments {
		lines = append(lines, fmt.Sprintf("%s Speaker %s: %s", timestamp(seg.Start, seg.End), seg.Speaker, seg.Text))
	}
	return strings.Join(lines, "\n")
}

func timestamp(start, end float64) string {
	return fmt.Sprintf("[%02d:%02d - %02d:%02d]",
		int(start)/60, int(start)%60, int(end)/60, int(end)%60)
}
