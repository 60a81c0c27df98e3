package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// inserts a single crash record; a duplicate md5 is not an error
func AddCrash(ctx context.Context, db *gorm.DB, crash *Crash) (bool, error) {
	if crash == nil {
		return false, nil
	}
	err := db.WithContext(ctx).Create(crash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HasCrash reports whether a crash with the given md5 is already indexed.
func HasCrash(ctx context.Context, db *gorm.DB, md5sum string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&Crash{}).Where("md5 = ?", md5sum).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// NewCrash creates a new Crash record with the provided parameters
func NewCrash(
	sessionID string,
	targetName string,
	instance string,
	path string,
	md5sum string,
) *Crash {
	return &Crash{
		SessionID:  sessionID,
		TargetName: targetName,
		Instance:   instance,
		Path:       path,
		MD5:        md5sum,
		FoundAt:    time.Now(),
	}
}
