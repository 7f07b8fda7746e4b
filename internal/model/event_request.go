package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Preference tag constants for event requests
const (
	PrefDecorations     = "decorations"
	PrefFoodDrinks      = "food_drinks"
	PrefFilmingPhotos   = "filming_photos"
	PrefMusic           = "music"
	PrefPosterArt       = "poster_art"
	PrefComputerRelated = "computer_related"
)

// ValidPreferences is the fixed tag set a request may carry
var ValidPreferences = map[string]bool{
	PrefDecorations:     true,
	PrefFoodDrinks:      true,
	PrefFilmingPhotos:   true,
	PrefMusic:           true,
	PrefPosterArt:       true,
	PrefComputerRelated: true,
}

// EventRequest is the workflow entity of the portal. Status and ReviewStep
// move together: PENDING always carries a step, every other status carries
// none. Transitions are applied through a single conditional update keyed
// on the expected prior (status, review_step) pair.
type EventRequest struct {
	ID          uuid.UUID `gorm:"type:uuid;default:(gen_random_uuid());primaryKey" json:"id"`
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Client      *Client   `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	SubmitterID uuid.UUID `gorm:"type:uuid;not null;index" json:"submitter_id"`
	Submitter   *User     `gorm:"foreignKey:SubmitterID" json:"submitter,omitempty"`

	EventType      string          `gorm:"type:varchar(100);not null" json:"event_type"`
	StartTime      time.Time       `gorm:"not null" json:"start_time"`
	FinishTime     time.Time       `gorm:"not null" json:"finish_time"`
	Location       string          `gorm:"type:varchar(255)" json:"location"`
	Preferences    []string        `gorm:"serializer:json" json:"preferences"`
	ExpectedBudget decimal.Decimal `gorm:"type:decimal(14,2);default:0" json:"expected_budget"`
	Note           string          `gorm:"type:text" json:"note"`

	Status     string  `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	ReviewStep *string `gorm:"type:varchar(30);index" json:"review_step"`

	// One feedback column per review step, written when that step acts.
	ScsoFeedback                  *string `gorm:"type:text" json:"scso_feedback"`
	FinancialManagerFeedback      *string `gorm:"type:text" json:"financial_manager_feedback"`
	AdministrationManagerFeedback *string `gorm:"type:text" json:"administration_manager_feedback"`
	CustomerMeetingFeedback       *string `gorm:"type:text" json:"customer_meeting_feedback"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *EventRequest) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
