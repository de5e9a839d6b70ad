package model

import "bapmate/internal/geo"

// LocationSession is one member's live location share in a room. UpdatedAt is
// unix milliseconds.
type LocationSession struct {
	RoomID      string   `json:"room_id"`
	UserID      string   `json:"uid"`
	DisplayName string   `json:"display_name"`
	IsSharing   bool     `json:"is_sharing"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	UpdatedAt   int64    `json:"updated_at"`
	DistanceM   *int64   `json:"distance_m,omitempty"`
}

type LocationUpdateRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Validate checks that both coordinates are present and in range.
func (r LocationUpdateRequest) Validate() error {
	if r.Lat == nil || r.Lng == nil {
		return ErrInvalidCoordinates
	}
	if !geo.ValidCoordinates(*r.Lat, *r.Lng) {
		return ErrInvalidCoordinates
	}
	return nil
}

type LocationMembersResponse struct {
	Meeting MeetingPoint      `json:"meeting"`
	Members []LocationSession `json:"members"`
}

var (
	ErrNotSharing         = newError(ErrValidation, "location sharing is not started")
	ErrInvalidCoordinates = newError(ErrValidation, "lat and lng are required and must be in range")
)
