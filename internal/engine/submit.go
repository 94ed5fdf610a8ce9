package engine

import (
	"context"
	"fmt"
	"strings"

	"sidequest/internal/domain"
)

// MissionCreator is the external mission-creation collaborator. The SDK
// client satisfies it against a real backend.
type MissionCreator interface {
	CreateMission(ctx context.Context, payload domain.MissionInput, ownerDeviceID string) (domain.Mission, error)
}

// MapDraft translates the internal draft into the backend creation payload.
// Pure and total; the network call stays with the MissionCreator.
func MapDraft(d domain.MissionDraft) domain.MissionInput {
	tags := dedupe(append(append([]string{d.Category}, d.Tags...), d.Skills...))

	rewardParts := []string{fmt.Sprintf("%d €", d.Price)}
	if d.Tip > 0 {
		rewardParts = append(rewardParts, fmt.Sprintf("Tip %d €", d.Tip))
	}
	rewardParts = append(rewardParts, string(d.Urgency))

	details := make([]string, 0, 5)
	if desc := strings.TrimSpace(d.Description); desc != "" {
		details = append(details, desc)
	}
	if d.Notes != "" {
		details = append(details, "Note: "+d.Notes)
	}
	if d.Access != "" {
		details = append(details, "Accesso: "+d.Access)
	}
	if d.Visibility == domain.VisibilityPrivate {
		details = append(details, "Visibilità: Privata su invito.")
	}
	details = append(details, "Quando: "+FormatWhen(d))

	location := d.Location.Address
	if d.Location.Mode == domain.LocationRemote {
		location = "Remoto"
	}

	var date string
	switch {
	case d.Schedule.Start != nil:
		date = *d.Schedule.Start
	case d.Schedule.Deadline != nil:
		date = *d.Schedule.Deadline
	}

	return domain.MissionInput{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.Join(details, "\n"),
		Reward:      strings.Join(rewardParts, " · "),
		Location:    location,
		Date:        date,
		Tags:        tags,
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
