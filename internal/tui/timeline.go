package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/christopherklint97/slotwise/internal/pipeline"
	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

// DayStatus is everything the status view shows for one day.
type DayStatus struct {
	Day           time.Time
	Slots         []store.Slot
	Now           time.Time
	PendingEvents int
	LastLocation  *timeline.Location
	DaemonPID     int // 0 when not running
}

// RenderDay draws the slots of a day with a per-category summary.
func RenderDay(s DayStatus) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(s.Day.Format("Monday, January 2 2006")))
	sb.WriteString("\n")

	if len(s.Slots) == 0 {
		sb.WriteString(dimStyle.Render("No slots recorded."))
		sb.WriteString("\n")
	}

	totals := make(map[timeline.Category]time.Duration)
	var order []timeline.Category
	for _, slot := range s.Slots {
		d := slot.Duration(s.Now)
		if _, seen := totals[slot.Category]; !seen {
			order = append(order, slot.Category)
		}
		totals[slot.Category] += d

		end := "now  "
		if slot.End != nil {
			end = slot.End.In(s.Now.Location()).Format("15:04")
		}
		line := fmt.Sprintf("%4d  %s–%s  %-8s  %s",
			slot.ID,
			slot.Start.In(s.Now.Location()).Format("15:04"),
			end,
			FormatDuration(d),
			CategoryBadge(slot.Category),
		)
		if marks := slotMarks(slot); marks != "" {
			line += "  " + dimStyle.Render(marks)
		}
		if slot.End == nil {
			line = selectedStyle.Render("▶ ") + line
		} else {
			line = "  " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(order) > 0 {
		sb.WriteString("\n")
		sb.WriteString(subtitleStyle.Render("Totals"))
		sb.WriteString("\n")
		for _, c := range order {
			sb.WriteString(fmt.Sprintf("  %-8s  %s\n", FormatDuration(totals[c]), CategoryBadge(c)))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(statusLine(s))

	return boxStyle.Render(sb.String())
}

func slotMarks(s store.Slot) string {
	var marks []string
	if s.CategoryWasSetByUser {
		marks = append(marks, "edited")
	} else if s.SmartGuessID != "" {
		marks = append(marks, "guessed")
	}
	if s.Location != nil {
		marks = append(marks, "@"+s.Location.String())
	}
	return strings.Join(marks, " ")
}

func statusLine(s DayStatus) string {
	var parts []string
	if s.DaemonPID > 0 {
		parts = append(parts, successStyle.Render(fmt.Sprintf("daemon running (pid %d)", s.DaemonPID)))
	} else {
		parts = append(parts, warningStyle.Render("daemon stopped"))
	}
	parts = append(parts, fmt.Sprintf("%d buffered events", s.PendingEvents))
	if s.LastLocation != nil {
		parts = append(parts, "last at "+s.LastLocation.String())
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}

// RenderGuesses lists the smart guess memory, marking struck-out guesses.
func RenderGuesses(guesses []smartguess.Guess, policy smartguess.Policy) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Smart guesses (%d)", len(guesses))))
	sb.WriteString("\n")

	if len(guesses) == 0 {
		sb.WriteString(dimStyle.Render("Nothing learned yet."))
		return sb.String()
	}

	for _, g := range guesses {
		line := fmt.Sprintf("%-8s  %s  %d/%d  last used %s",
			g.ID[:min(8, len(g.ID))],
			g.Location.String(),
			g.Errors, policy.StrikeThreshold,
			g.LastUsed.Local().Format("2006-01-02 15:04"),
		)
		if policy.Eligible(g) {
			sb.WriteString(CategoryBadge(g.Category) + "  " + line)
		} else {
			sb.WriteString(dimStyle.Render(string(g.Category) + "  " + line + "  (excluded)"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderCommit summarizes a commit for the terminal.
func RenderCommit(res pipeline.CommitResult, err error) string {
	if err != nil {
		msg := errorStyle.Render("Commit failed: ") + err.Error()
		if len(res.Committed) > 0 {
			msg += "\n" + warningStyle.Render(fmt.Sprintf("%d slots were committed before the failure; buffered events were kept.", len(res.Committed)))
		}
		return msg
	}
	if len(res.Committed) == 0 {
		return dimStyle.Render("Nothing to commit.")
	}
	return successStyle.Render(fmt.Sprintf("Committed %d slots, purged %d buffered events.", len(res.Committed), res.Purged))
}

// FormatDuration renders d as "1h05m" or "12m".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
