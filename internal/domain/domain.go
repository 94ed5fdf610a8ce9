package domain

// QualityLevel is the derived content-quality tier of a draft.
type QualityLevel string

const (
	QualityCompleta    QualityLevel = "Completa"
	QualityOttimizzata QualityLevel = "Ottimizzata"
	QualityEccellente  QualityLevel = "Eccellente"
)

// CategorySource records how the draft category was chosen.
type CategorySource string

const (
	CategoryAuto     CategorySource = "auto"
	CategoryManual   CategorySource = "manual"
	CategoryTemplate CategorySource = "template"
)

// LocationMode distinguishes on-site missions from remote ones.
type LocationMode string

const (
	LocationInPerson LocationMode = "in_person"
	LocationRemote   LocationMode = "remote"
)

// ScheduleOption is the coarse scheduling choice of a draft.
type ScheduleOption string

const (
	ScheduleNow      ScheduleOption = "now"
	ScheduleTonight  ScheduleOption = "tonight"
	ScheduleTomorrow ScheduleOption = "tomorrow"
	ScheduleCustom   ScheduleOption = "custom"
)

// Urgency labels how quickly the requester needs a doer.
type Urgency string

const (
	UrgencyNormale     Urgency = "Normale"
	UrgencyPrioritaria Urgency = "Prioritaria"
	UrgencyASAP        Urgency = "ASAP"
)

// Visibility controls whether a mission is offered publicly or by invite.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type AttachmentType string

const (
	AttachmentPhoto AttachmentType = "photo"
	AttachmentVideo AttachmentType = "video"
)

type Attachment struct {
	ID   string         `json:"id"`
	URI  string         `json:"uri"`
	Type AttachmentType `json:"type"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Location struct {
	Mode        LocationMode `json:"mode"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Schedule start/deadline are RFC3339 timestamps, meaningful only for the
// custom option.
type Schedule struct {
	Option   ScheduleOption `json:"option"`
	Start    *string        `json:"start,omitempty"`
	Deadline *string        `json:"deadline,omitempty"`
}

// PriceRange is a suggested compensation band in whole euros.
type PriceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
	Avg int `json:"avg"`
}

// RefineResult is the output of the optional refine collaborator. It is
// never applied automatically; the user merges it explicitly.
type RefineResult struct {
	Category           string      `json:"category,omitempty"`
	RefinedTitle       string      `json:"refined_title,omitempty"`
	RefinedDescription string      `json:"refined_description,omitempty"`
	SuggestedRange     *PriceRange `json:"suggested_range,omitempty"`
	EstimatedDuration  string      `json:"estimated_duration,omitempty"`
	Missing            []string    `json:"missing,omitempty"`
}

// MissionDraft is the in-progress mission being composed by the wizard.
// There is a single mutable instance per wizard session, owned by the store.
type MissionDraft struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	CategorySource CategorySource `json:"category_source"`
	Tags           []string       `json:"tags"`
	Quality        QualityLevel   `json:"quality"`
	Location       Location       `json:"location"`
	Schedule       Schedule       `json:"schedule"`
	Price          int            `json:"price"`
	PriceInput     string         `json:"price_input"`
	PriceRangeHint PriceRange     `json:"price_range_hint"`
	Tip            int            `json:"tip,omitempty"`
	Urgency        Urgency        `json:"urgency"`
	Skills         []string       `json:"skills"`
	Notes          string         `json:"notes"`
	Access         string         `json:"access"`
	Attachments    []Attachment   `json:"attachments"`
	Visibility     Visibility     `json:"visibility"`
	Refined        *RefineResult  `json:"refined,omitempty"`
	TemplateKey    string         `json:"template_key,omitempty"`
	QuickMode      bool           `json:"quick_mode,omitempty"`
	UpdatedAt      int64          `json:"updated_at"`
}

// Validation maps a field path (dotted for nested fields, e.g.
// "location.address") to a human-readable error. Rebuilt on every pass.
type Validation map[string]string

// MissionInput is the outbound creation payload for the backend.
type MissionInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Reward      string   `json:"reward,omitempty"`
	Location    string   `json:"location,omitempty"`
	Date        string   `json:"date,omitempty"`
	Tags        []string `json:"tags"`
}

// Event is one entry of the local activity log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	Payload    string `json:"payload_json"`
}

// Mission is the backend's mission record.
type Mission struct {
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
