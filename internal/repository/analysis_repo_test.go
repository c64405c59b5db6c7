package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

func setupAnalysisDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AnalysisRecord{}))
	return db
}

func TestAnalysisRepositoryListBySessionNewestFirst(t *testing.T) {
	db := setupAnalysisDB(t)
	repo := NewAnalysisRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.AnalysisRecord{
		{ID: "a1", SessionID: "s1", Fingerprint: "f1", Status: models.AnalysisStatusGraded, CreatedAt: base},
		{ID: "a2", SessionID: "s1", Fingerprint: "f1", Status: models.AnalysisStatusCached, CreatedAt: base.Add(time.Minute)},
		{ID: "b1", SessionID: "s2", Fingerprint: "f2", Status: models.AnalysisStatusGraded, CreatedAt: base},
	}
	for i := range records {
		records[i].Thresholds = datatypes.JSON(`{"depth":0.5}`)
		require.NoError(t, repo.Create(ctx, &records[i]))
	}

	list, err := repo.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a2", list[0].ID)
	require.Equal(t, "a1", list[1].ID)
	require.JSONEq(t, `{"depth":0.5}`, string(list[1].Thresholds))

	limited, err := repo.ListBySession(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	empty, err := repo.ListBySession(ctx, "missing", 5)
	require.NoError(t, err)
	require.Empty(t, empty)
}
