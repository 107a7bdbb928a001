package domain

import "time"

// Device is a physical (or simulated) board owned by a user. Pins is a free-form
// map of pin name to last reported value; pin values are written individually
// with atomic field updates, never by replacing the whole document.
type Device struct {
	ID         string         `bson:"_id,omitempty" json:"id"`
	Username   string         `bson:"username" json:"username"`
	DeviceName string         `bson:"device_name" json:"deviceName"`
	Pins       map[string]any `bson:"pins" json:"pins"`
	Updated    time.Time      `bson:"updated" json:"updated"`
}
