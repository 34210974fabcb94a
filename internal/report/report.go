// Package report renders the outcome of a sync run and the assignment
// statistics that accompany it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"todosync/internal/due"
	"todosync/internal/models"
	"todosync/internal/reconcile"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Stats summarizes the fetched assignments independently of what the
// sync did with them.
type Stats struct {
	Total           int        `json:"total" yaml:"total"`
	Submitted       int        `json:"submitted" yaml:"submitted"`
	Locked          int        `json:"locked" yaml:"locked"`
	Unsubmittable   int        `json:"unsubmittable" yaml:"unsubmittable"`
	NotGraded       int        `json:"not_graded" yaml:"not_graded"`
	Remaining       int        `json:"remaining" yaml:"remaining"`
	Graded          int        `json:"graded" yaml:"graded"`
	LastGradeUpdate *time.Time `json:"last_grade_update,omitempty" yaml:"last_grade_update,omitempty"`
}

// Report is everything printed at the end of a sync.
type Report struct {
	Run   models.Run `json:"run" yaml:"run"`
	Stats Stats      `json:"stats" yaml:"stats"`
}

// NewRun converts the engine state into a ledger row.
func NewRun(st *reconcile.RunState, started, finished time.Time, dryRun bool) models.Run {
	run := models.Run{
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
		Created:       st.Created,
		Updated:       st.Updated,
		AlreadySynced: st.AlreadySynced,
		Excluded:      st.Excluded,
		Skipped:       st.Skipped,
		Failed:        st.Failed,
		LimitReached:  st.LimitReached,
		LimitCause:    string(st.LimitCause),
		DryRun:        dryRun,
		Reasons:       make(map[string]int, len(st.Reasons)),
	}
	for reason, n := range st.Reasons {
		run.Reasons[string(reason)] = n
	}
	return run
}

// ComputeStats counts assignments by state. Each assignment lands in at
// most one of submitted, locked, unsubmittable and not graded, checked in
// that order; the rest are remaining. Graded is the larger of the two
// grading signals the platform reports.
func ComputeStats(assignments []models.Assignment) Stats {
	s := Stats{Total: len(assignments)}
	instructorGraded := 0
	gradedAt := 0

	for _, a := range assignments {
		if a.Submission != nil && a.Submission.GradedAt != "" {
			if t, err := due.Parse(a.Submission.GradedAt); err == nil && t != nil {
				gradedAt++
				if s.LastGradeUpdate == nil || t.After(*s.LastGradeUpdate) {
					s.LastGradeUpdate = t
				}
			}
		}
		if a.GradedSubmissionsExist {
			instructorGraded++
		}

		switch {
		case a.WorkflowState() != models.WorkflowStateUnsubmitted:
			s.Submitted++
		case a.LockedForUser:
			s.Locked++
		case a.PrimarySubmissionType() == "none":
			s.Unsubmittable++
		case a.PrimarySubmissionType() == "not_graded":
			s.NotGraded++
		}
	}

	s.Remaining = s.Total - s.Submitted - s.Locked - s.Unsubmittable - s.NotGraded
	s.Graded = max(instructorGraded, gradedAt)
	return s
}

// Write renders r in the given format. Text output shows times in loc.
func Write(w io.Writer, format string, r Report, loc *time.Location) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, renderText(w, r, loc))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(w io.Writer, r Report, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	re := lipgloss.NewRenderer(w)
	title := re.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	label := re.NewStyle().Width(28)
	warn := re.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	var b strings.Builder
	line := func(name string, v any) {
		fmt.Fprintf(&b, "%s%v\n", label.Render(name), v)
	}

	heading := "Sync summary"
	if r.Run.DryRun {
		heading += " (dry run)"
	}
	b.WriteString(title.Render(heading) + "\n")
	line("Created", r.Run.Created)
	line("Updated", r.Run.Updated)
	line("Already synced", r.Run.AlreadySynced)
	line("Excluded", r.Run.Excluded)
	line("Skipped", r.Run.Skipped)
	line("Failed", r.Run.Failed)

	if len(r.Run.Reasons) > 0 {
		reasons := make([]string, 0, len(r.Run.Reasons))
		for reason := range r.Run.Reasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			line("  "+reason, r.Run.Reasons[reason])
		}
	}

	if r.Run.LimitReached {
		b.WriteString(warn.Render(fmt.Sprintf("Limit reached (%s). Not all tasks were synced; try again in 15 minutes.", r.Run.LimitCause)) + "\n")
	}

	b.WriteString("\n" + title.Render("Assignment statistics") + "\n")
	line("Total assignments", r.Stats.Total)
	line("Submitted", r.Stats.Submitted)
	line("Locked", r.Stats.Locked)
	line("Unsubmittable", r.Stats.Unsubmittable)
	line("Not graded", r.Stats.NotGraded)
	line("Remaining (unlocked)", r.Stats.Remaining)
	line("Currently graded", r.Stats.Graded)
	last := "Never"
	if r.Stats.LastGradeUpdate != nil {
		last = r.Stats.LastGradeUpdate.In(loc).Format(due.Layout)
	}
	line("Last grade update", last)
	return b.String()
}

// WriteHistory renders recorded runs, newest first.
func WriteHistory(w io.Writer, format string, runs []models.Run, loc *time.Location) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(runs); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	if loc == nil {
		loc = time.UTC
	}
	if len(runs) == 0 {
		_, err := io.WriteString(w, "No runs recorded.\n")
		return err
	}
	re := lipgloss.NewRenderer(w)
	header := re.NewStyle().Bold(true)

	var b strings.Builder
	b.WriteString(header.Render(fmt.Sprintf("%-36s  %-22s  %7s  %7s  %7s  %7s  %s", "RUN", "STARTED", "CREATED", "UPDATED", "SKIPPED", "FAILED", "NOTE")) + "\n")
	for _, r := range runs {
		var notes []string
		if r.DryRun {
			notes = append(notes, "dry run")
		}
		if r.LimitReached {
			notes = append(notes, "limit: "+r.LimitCause)
		}
		fmt.Fprintf(&b, "%-36s  %-22s  %7d  %7d  %7d  %7d  %s\n",
			r.ID, r.StartedAt.In(loc).Format("2006-01-02 15:04 MST"), r.Created, r.Updated, r.Skipped, r.Failed, strings.Join(notes, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
