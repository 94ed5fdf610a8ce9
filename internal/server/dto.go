package server

import "sidequest/internal/domain"

type CreateMissionRequest struct {
	Title       string   `json:"title" example:"Ritiro pacco DHL"`
	Description string   `json:"description,omitempty"`
	Reward      string   `json:"reward,omitempty" example:"14 € · Normale"`
	Location    string   `json:"location,omitempty"`
	Date        string   `json:"date,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type MissionResponse struct {
	ID            string   `json:"id"`
	OwnerDeviceID string   `json:"owner_device_id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Reward        string   `json:"reward,omitempty"`
	Location      string   `json:"location,omitempty"`
	Date          string   `json:"date,omitempty"`
	Tags          []string `json:"tags"`
	Status        string   `json:"status" enum:"open,closed,draft"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
}

type MissionListResponse struct {
	Missions []MissionResponse `json:"missions"`
}

type EventListResponse struct {
	Events []domain.Event `json:"events"`
}

func missionResponse(m domain.Mission) MissionResponse {
	return MissionResponse{
		ID:            m.ID,
		OwnerDeviceID: m.OwnerDeviceID,
		Title:         m.Title,
		Description:   m.Description,
		Reward:        m.Reward,
		Location:      m.Location,
		Date:          m.Date,
		Tags:          m.Tags,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
	}
}
