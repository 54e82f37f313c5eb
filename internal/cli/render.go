package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ytget/ytqueue/internal/model"
	"github.com/ytget/ytqueue/internal/platform"
)

// progressStep is the percentage granularity of printed progress lines
const progressStep = 10

const maxTitleWidth = 60

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// renderer prints job events as plain lines so output stays readable when
// piped. It implements download.Subscriber.
type renderer struct {
	mu         sync.Mutex
	out        io.Writer
	buckets    map[string]int
	processing map[string]bool
	now        func() time.Time
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{
		out:        out,
		buckets:    make(map[string]int),
		processing: make(map[string]bool),
		now:        time.Now,
	}
}

// OnStatusChange implements download.Subscriber
func (r *renderer) OnStatusChange(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Type == model.EventRemoved {
		delete(r.buckets, ev.JobID)
		delete(r.processing, ev.JobID)
		return
	}
	fmt.Fprintln(r.out, r.statusLine(ev.Job))
}

// OnProgress implements download.Subscriber
func (r *renderer) OnProgress(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Progress.Stage == model.StagePostProcessing {
		if !r.processing[ev.JobID] {
			r.processing[ev.JobID] = true
			fmt.Fprintln(r.out, activeStyle.Render("processing")+" "+truncateTitle(ev.Job.GetDisplayTitle(), maxTitleWidth))
		}
		return
	}

	bucket := ev.Progress.Percent() / progressStep
	if last, ok := r.buckets[ev.JobID]; ok && bucket <= last {
		return
	}
	r.buckets[ev.JobID] = bucket
	fmt.Fprintln(r.out, progressLine(ev.Job.GetDisplayTitle(), ev.Progress))
}

// entryFailed reports a playlist entry that could not be resolved
func (r *renderer) entryFailed(url string, e model.EntryError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s #%d: %s\n", warnStyle.Render("skip"), mutedStyle.Render(url), e.Index, e.Message)
}

// notice prints a one-line message between job events
func (r *renderer) notice(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// summary prints the final tally for jobs
func (r *renderer) summary(jobs []model.JobSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completed, failed, cancelled int
	for _, j := range jobs {
		switch j.Status {
		case model.StatusCompleted:
			completed++
		case model.StatusFailed:
			failed++
		case model.StatusCancelled:
			cancelled++
		}
	}

	parts := []string{okStyle.Render(fmt.Sprintf("%d completed", completed))}
	if failed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	if cancelled > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d cancelled", cancelled)))
	}
	fmt.Fprintln(r.out, titleStyle.Render("Done:")+" "+strings.Join(parts, ", "))
}

func (r *renderer) statusLine(s model.JobSnapshot) string {
	title := truncateTitle(s.GetDisplayTitle(), maxTitleWidth)
	switch s.Status {
	case model.StatusPending:
		return mutedStyle.Render("queued    ") + " " + title
	case model.StatusRunning:
		return activeStyle.Render("started   ") + " " + title
	case model.StatusPausedForCancel:
		return warnStyle.Render("cancelling") + " " + title
	case model.StatusCancelled:
		return warnStyle.Render("cancelled ") + " " + title
	case model.StatusFailed:
		return errorStyle.Render("failed    ") + " " + title + mutedStyle.Render(": "+s.ErrorMessage())
	case model.StatusCompleted:
		line := okStyle.Render("done      ") + " " + title
		if s.OutputPath != "" {
			line += mutedStyle.Render(" -> " + s.OutputPath)
		}
		if elapsed := s.Elapsed(r.now()); elapsed > 0 {
			line += mutedStyle.Render(" (" + platform.FormatSeconds(int(elapsed.Seconds())) + ")")
		}
		return line
	default:
		return string(s.Status) + " " + title
	}
}

func progressLine(title string, p model.Progress) string {
	size := platform.FormatBytes(p.BytesDone)
	if p.TotalKnown() {
		size += " / " + platform.FormatBytes(p.BytesTotal)
	}
	if p.Part > 1 {
		size += fmt.Sprintf(" part %d", p.Part)
	}
	if p.Speed > 0 {
		size += " at " + platform.FormatBytes(p.Speed) + "/s"
	}
	if secs := int(p.ETA.Seconds()); secs > 0 {
		size += " ETA " + platform.FormatSeconds(secs)
	}
	return fmt.Sprintf("%s %s %s", activeStyle.Render(fmt.Sprintf("%9d%%", p.Percent())), truncateTitle(title, maxTitleWidth), mutedStyle.Render(size))
}

func truncateTitle(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
