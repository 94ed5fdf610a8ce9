package engine

import (
	"fmt"
	"strings"
	"time"

	"sidequest/internal/domain"
)

var shortMonths = [...]string{
	"gen", "feb", "mar", "apr", "mag", "giu",
	"lug", "ago", "set", "ott", "nov", "dic",
}

func formatInstant(t time.Time) string {
	return fmt.Sprintf("%d %s %02d:%02d", t.Day(), shortMonths[t.Month()-1], t.Hour(), t.Minute())
}

func parseInstant(s *string) (time.Time, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatWhen renders the schedule for summaries and the outbound description.
func FormatWhen(d domain.MissionDraft) string {
	switch d.Schedule.Option {
	case domain.ScheduleNow:
		return "Subito"
	case domain.ScheduleTonight:
		return "Oggi sera"
	case domain.ScheduleTomorrow:
		return "Domani"
	default:
		start, startOK := parseInstant(d.Schedule.Start)
		end, endOK := parseInstant(d.Schedule.Deadline)
		switch {
		case startOK && endOK:
			return formatInstant(start) + " → " + formatInstant(end)
		case startOK:
			return formatInstant(start)
		case endOK:
			return "Entro " + formatInstant(end)
		default:
			return "Da pianificare"
		}
	}
}

// FormatWhere renders the location for summaries.
func FormatWhere(d domain.MissionDraft) string {
	if d.Location.Mode == domain.LocationRemote {
		return "Remoto"
	}
	if strings.TrimSpace(d.Location.Address) != "" {
		return d.Location.Address
	}
	return "Da definire"
}

// FormatPrice renders the offered compensation.
func FormatPrice(d domain.MissionDraft) string {
	return fmt.Sprintf("%d €", d.Price)
}

// FormatTip renders the optional tip, or a dash when absent.
func FormatTip(tip int) string {
	if tip <= 0 {
		return "—"
	}
	return fmt.Sprintf("%d €", tip)
}
