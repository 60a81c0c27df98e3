package database

import "time"

// Crash represents one deduplicated crashing input found during a
// fuzzing session.
type Crash struct {
	ID         int       `gorm:"primaryKey;column:id"`
	SessionID  string    `gorm:"column:session_id;not null;index"`
	TargetName string    `gorm:"column:target_name"`
	Instance   string    `gorm:"column:instance;not null"`
	Path       string    `gorm:"column:path;not null"`
	MD5        string    `gorm:"column:md5;not null;uniqueIndex"`
	FoundAt    time.Time `gorm:"column:found_at"`
}
