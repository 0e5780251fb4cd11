package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestStatus is one row per inbound advisory request.
type RequestStatus struct {
	RequestID string `gorm:"primaryKey"`
	Status    string
	Sender    string
	Detail    string
	UpdatedAt time.Time
}

type StatusStore struct {
	db        *gorm.DB
	tableName string
}

func NewStatusStore(db *gorm.DB, tableName string) (*StatusStore, error) {
	if tableName == "" {
		tableName = "request_statuses"
	}
	if err := db.Table(tableName).AutoMigrate(&RequestStatus{}); err != nil {
		return nil, err
	}
	return &StatusStore{
		db:        db,
		tableName: tableName,
	}, nil
}

func (s *StatusStore) UpdateStatus(ctx context.Context, requestID, status, sender, detail string) error {
	rs := RequestStatus{
		RequestID: requestID,
		Status:    status,
		Sender:    sender,
		Detail:    detail,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "sender", "detail", "updated_at"}),
		}).Create(&rs).Error
}

// Get returns the stored status for requestID.
func (s *StatusStore) Get(ctx context.Context, requestID string) (*RequestStatus, error) {
	var rs RequestStatus
	err := s.db.WithContext(ctx).Table(s.tableName).Where("request_id = ?", requestID).First(&rs).Error
	if err != nil {
		return nil, err
	}
	return &rs, nil
}
