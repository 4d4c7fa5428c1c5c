package model

import "encoding/json"

// IgnoredEvent suppresses one event from display without deleting its row.
// The list is append-only and stored as a single serialized value.
//
// Day is set only for occurrences of recurring series; a non-recurring
// event is identified by tracking id alone.
type IgnoredEvent struct {
	TrackingID string `json:"tracking_id"`
	Day        string `json:"day,omitempty"`
	LastSeen   string `json:"last_seen"`
}

// Key is the dedupe key: (tracking id, day) for recurring occurrences,
// tracking id alone otherwise.
func (ie IgnoredEvent) Key() string {
	if ie.Day == "" {
		return ie.TrackingID
	}
	return ie.TrackingID + "\n" + ie.Day
}

// IgnoredSeries suppresses every occurrence of one recurring series.
type IgnoredSeries struct {
	ID       string `json:"id"`
	LastSeen string `json:"last_seen"`
}

// DecodeIgnoredEvents parses the serialized ignored-events value. A missing
// or unparseable value is treated as empty, never as an error.
func DecodeIgnoredEvents(v any) []IgnoredEvent {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	var out []IgnoredEvent
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// EncodeIgnoredEvents serializes the ignored-events list for storage.
func EncodeIgnoredEvents(list []IgnoredEvent) (string, error) {
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeIgnoredSeries parses the serialized ignored-series value in its
// current {id, last_seen} shape. Entries that are not objects are dropped;
// the migration runner handles the legacy plain-id list.
func DecodeIgnoredSeries(v any) []IgnoredSeries {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	var out []IgnoredSeries
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// EncodeIgnoredSeries serializes the ignored-series list for storage.
func EncodeIgnoredSeries(list []IgnoredSeries) (string, error) {
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
