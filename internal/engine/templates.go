package engine

import "sidequest/internal/domain"

// MissionTemplate is a canned mission a step can apply wholesale.
type MissionTemplate struct {
	Key         string
	Title       string
	Description string
	Category    string
	Tags        []string
	Price       domain.PriceRange
	Urgency     domain.Urgency
}

var templates = []MissionTemplate{
	{
		Key:         "grocery",
		Title:       "Spesa settimanale al supermercato",
		Description: "Lista pronta, serve qualcuno che faccia la spesa e consegni a casa entro stasera.",
		Category:    "Spesa",
		Tags:        []string{"Spesa", "Consegna"},
		Price:       rangeByCategory["Spesa"],
		Urgency:     domain.UrgencyPrioritaria,
	},
	{
		Key:         "package",
		Title:       "Ritiro pacco DHL",
		Description: "Il pacco è pronto al punto ritiro in centro. Serve consegna entro le 19.",
		Category:    "Ritiro pacco",
		Tags:        []string{"Consegna"},
		Price:       rangeByCategory["Ritiro pacco"],
		Urgency:     domain.UrgencyNormale,
	},
	{
		Key:         "assembly",
		Title:       "Montaggio scaffale Ikea Billy",
		Description: "Scatola nuova, strumenti già sul posto. Serve montaggio e fissaggio a parete.",
		Category:    "Montaggio",
		Tags:        []string{"Montaggio", "Casa"},
		Price:       rangeByCategory["Montaggio"],
		Urgency:     domain.UrgencyASAP,
	},
}

// Templates returns the catalog in display order.
func Templates() []MissionTemplate {
	out := make([]MissionTemplate, len(templates))
	copy(out, templates)
	return out
}

// TemplateByKey returns the template with the given key, if any.
func TemplateByKey(key string) (MissionTemplate, bool) {
	for _, t := range templates {
		if t.Key == key {
			return t, true
		}
	}
	return MissionTemplate{}, false
}
