package repositories

import "time"

func nowForTest() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string {
	return &s
}
