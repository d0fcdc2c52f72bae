package model

import "time"

// TimestampLayout is the ISO-8601 form stored in Achievement.Date:
// UTC, millisecond precision, literal Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Achievement is a badge stored in the user's achievement list.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// HasAchievement reports whether list contains id.
func HasAchievement(list []Achievement, id string) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}
