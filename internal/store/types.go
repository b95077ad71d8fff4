package store

import (
	"bytes"
	"encoding/json"
	"time"
)

// ApiReservation represents a single reservation record from the upstream API.
type ApiReservation struct {
	ID                    UpstreamID `json:"id"`
	PlaceID               UpstreamID `json:"placeId"`
	UserID                UpstreamID `json:"userId"`
	ReservationTime       string     `json:"reservationTime"`
	ReservationTimeParsed time.Time  `json:"-"`
	NumberOfPeople        int        `json:"numberOfPeople"`
	Note                  *string    `json:"note"`
	Status                string     `json:"status"`
}

// ApiVenue represents a single venue record from the upstream API.
type ApiVenue struct {
	ID           UpstreamID `json:"id"`
	Name         string     `json:"name"`
	WorkingDays  *string    `json:"workingDays"`
	WorkingHours *string    `json:"workingHours"`
	MaxPeople    int        `json:"maxPeople"`
}

// UpstreamID accepts both JSON strings and numbers.
type UpstreamID string

func (id *UpstreamID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UpstreamID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = UpstreamID(n.String())
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
