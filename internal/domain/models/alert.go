package models

import "time"

type AlertLevel string

const (
	LevelHigh     AlertLevel = "high"
	LevelMedium   AlertLevel = "medium"
	LevelLow      AlertLevel = "low"
	LevelPositive AlertLevel = "positive"
)

var levelDisplay = map[AlertLevel]string{
	LevelHigh:     "High",
	LevelMedium:   "Medium",
	LevelLow:      "Low",
	LevelPositive: "Positive",
}

// Display returns the human readable level name used by the alert lists.
func (l AlertLevel) Display() string {
	if name, ok := levelDisplay[l]; ok {
		return name
	}
	return string(l)
}

func (l AlertLevel) Valid() bool {
	_, ok := levelDisplay[l]
	return ok
}

type Alert struct {
	ID        int64      `json:"id" db:"id"`
	Message   string     `json:"message" db:"message"`
	Missing   string     `json:"missing" db:"missing"`
	Level     AlertLevel `json:"level" db:"level"`
	Video     string     `json:"video" db:"video"`
	Timestamp time.Time  `json:"timestamp" db:"created_at"`
	Resolved  bool       `json:"resolved" db:"resolved"`
}
