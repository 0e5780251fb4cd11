package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

// WeatherObservation is an appended record of a fetched weather reading.
type WeatherObservation struct {
	ID          uint   `gorm:"primaryKey"`
	City        string `gorm:"index"`
	Country     string
	Condition   string
	Description string
	Temp        float64
	Humidity    int
	Pressure    int
	WindSpeed   float64
	ObservedAt  time.Time `gorm:"index"`
	CreatedAt   time.Time
}

type WeatherLog struct {
	db        *gorm.DB
	tableName string
}

func NewWeatherLog(db *gorm.DB, tableName string) (*WeatherLog, error) {
	if tableName == "" {
		tableName = "weather_observations"
	}
	if err := db.Table(tableName).AutoMigrate(&WeatherObservation{}); err != nil {
		return nil, err
	}
	return &WeatherLog{db: db, tableName: tableName}, nil
}

func (l *WeatherLog) Record(ctx context.Context, w *models.Weather) error {
	obs := WeatherObservation{
		City:        w.City,
		Country:     w.Country,
		Condition:   w.Condition,
		Description: w.Description,
		Temp:        w.Temp,
		Humidity:    w.Humidity,
		Pressure:    w.Pressure,
		WindSpeed:   w.WindSpeed,
		ObservedAt:  w.ObservedAt,
	}
	return l.db.WithContext(ctx).Table(l.tableName).Create(&obs).Error
}

// Recent returns up to limit observations for city, newest first.
func (l *WeatherLog) Recent(ctx context.Context, city string, limit int) ([]WeatherObservation, error) {
	if limit <= 0 {
		limit = 30
	}
	var out []WeatherObservation
	err := l.db.WithContext(ctx).Table(l.tableName).
		Where("LOWER(city) = LOWER(?)", city).
		Order("observed_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
