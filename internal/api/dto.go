package api

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/index"
)

var dateKeyRe = regexp.MustCompile(`^\d+_\d+_\d+$`)

// validateDateKey checks the {monthIndex}_{day}_{year} shape of a path key.
func validateDateKey(key string) error {
	return validation.Validate(key,
		validation.Required.Error("date key is required"),
		validation.Match(dateKeyRe).Error("date key must look like {monthIndex}_{day}_{year}"),
	)
}

// SaveResponse is returned after a successful save or import.
type SaveResponse struct {
	Status             string `json:"status" example:"saved" validate:"required"`
	LastSavedTimestamp string `json:"lastSavedTimestamp" example:"1700000000000" validate:"required"`
	Days               int    `json:"days" example:"12" validate:"required"`
}

// DayResponse is the events of one day.
type DayResponse struct {
	DateKey diary.DateKey `json:"dateKey" example:"2_14_2024" validate:"required"`
	Events  []diary.Event `json:"events" validate:"required"`
}

// PutDayRequest is the request body for replacing a day. An empty list
// deletes the day.
type PutDayRequest struct {
	Events []diary.RawEvent `json:"events"`
}

// Validate validates the request.
func (r PutDayRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Events, validation.NotNil.Error("events is required")),
	)
}

// AddEventRequest is the request body for appending one event.
type AddEventRequest struct {
	Text      string   `json:"text" example:"Finish report"`
	Completed bool     `json:"completed"`
	Tags      []string `json:"tags" example:"work,urgent"`
}

// Validate validates the request.
func (r AddEventRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required.Error("text is required")),
	)
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// TagsResponse wraps tag counts.
type TagsResponse struct {
	Tags []index.TagCount `json:"tags" validate:"required"`
}
