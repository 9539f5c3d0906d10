package monitor

import "time"

// Sample is one reading of the pulse oximeter. It is produced once per
// tick and replaced, never merged, by the next one.
type Sample struct {
	HeartRate int       `json:"heartRate"` // bpm
	SpO2      int       `json:"spo2"`      // percent
	Diff      int       `json:"diff"`
	Taken     time.Time `json:"taken"`
}

// Reading is a sample together with the alarm state it produced.
type Reading struct {
	Sample Sample     `json:"sample"`
	Alarm  AlarmState `json:"alarm"`
}
