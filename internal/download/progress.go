package download

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/heathweaver/video-transcription/internal/utils"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pendingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type fileProgress struct {
	Name       string
	Total      int64
	Downloaded int64
	Completed  bool
	Failure    string
	StartTime  time.Time
}

// Progress tracks per-file transfer state for the whole batch and renders
// the end-of-batch summary.
type Progress struct {
	mu    sync.RWMutex
	files map[string]*fileProgress
	order []string
}

func NewProgress() *Progress {
	return &Progress{files: make(map[string]*fileProgress)}
}

// Register starts (or restarts, on retry) tracking for a file. Retries
// re-download from byte zero, so counters reset too.
func (p *Progress) Register(name string, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.files[name]; !exists {
		p.order = append(p.order, name)
	}
	p.files[name] = &fileProgress{
		Name:      name,
		Total:     total,
		StartTime: time.Now(),
	}
}

func (p *Progress) Add(name string, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, exists := p.files[name]; exists {
		info.Downloaded += n
	}
}

func (p *Progress) Complete(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, exists := p.files[name]; exists {
		info.Completed = true
	}
}

func (p *Progress) Fail(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, exists := p.files[name]; exists {
		info.Failure = fmt.Sprintf("%v", err)
	} else {
		p.order = append(p.order, name)
		p.files[name] = &fileProgress{Name: name, Failure: fmt.Sprintf("%v", err)}
	}
}

// Summary renders one line per file plus batch totals.
func (p *Progress) Summary() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render("Batch summary"))
	b.WriteString("\n")
	var totalBytes int64
	succeeded, failed := 0, 0
	for _, name := range p.order {
		info := p.files[name]
		display := name
		if len(display) > 40 {
			display = "..." + display[len(display)-37:]
		}
		switch {
		case info.Failure != "":
			failed++
			b.WriteString(failureStyle.Render(fmt.Sprintf("  ✗ %s  %s", display, info.Failure)))
		case info.Completed:
			succeeded++
			totalBytes += info.Downloaded
			b.WriteString(successStyle.Render(fmt.Sprintf("  ✓ %s  %s", display, utils.FormatBytes(uint64(info.Downloaded)))))
		default:
			b.WriteString(pendingStyle.Render(fmt.Sprintf("  - %s  incomplete", display)))
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("Downloaded %s across %d file(s), %d failed\n",
		utils.FormatBytes(uint64(totalBytes)), succeeded, failed))
	return b.String()
}

// Counts returns how many tracked files succeeded and failed.
func (p *Progress) Counts() (succeeded, failed int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, info := range p.files {
		if info.Failure != "" {
			failed++
		} else if info.Completed {
			succeeded++
		}
	}
	return succeeded, failed
}
