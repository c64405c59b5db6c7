package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

const defaultAnalysisLimit = 20

// AnalysisRepository persists the analysis audit log.
type AnalysisRepository interface {
	Create(ctx context.Context, record *models.AnalysisRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AnalysisRecord, error)
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository constructs a repository for analysis records.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, record *models.AnalysisRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *analysisRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AnalysisRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultAnalysisLimit
	}

	var records []models.AnalysisRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
