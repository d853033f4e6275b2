package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mswiatek/filmweb-backup/models"
	"gorm.io/gorm"
)

// runMigrations brings the schema up to date and applies the SQLite
// settings the store relies on.
func runMigrations(db *gorm.DB, logger *slog.Logger) error {
	ctx := context.Background()

	if err := enableSQLiteOptimizations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to enable SQLite optimizations: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Genre{},
		&models.Director{},
		&models.CastMember{},
		&models.Country{},
		&models.Movie{},
		&models.MovieRating{},
		&models.UserRating{},
		&models.UserDetails{},
		&models.UserSimilarity{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := createAdditionalIndexes(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return nil
}

// enableSQLiteOptimizations applies SQLite-specific pragmas.
func enableSQLiteOptimizations(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range optimizations {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.Warn("Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		} else {
			logger.Debug("Executed pragma", slog.String("pragma", pragma))
		}
	}

	return nil
}

// createAdditionalIndexes creates indexes for the queries the sync and
// export paths issue.
func createAdditionalIndexes(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	additionalIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_user_ratings_user ON user_ratings(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_user_ratings_movie ON user_ratings(movie_id)",
		"CREATE INDEX IF NOT EXISTS idx_user_similarities_user ON user_similarities(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_movies_year ON movies(year)",
	}

	for _, indexSQL := range additionalIndexes {
		if err := db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
			logger.Warn("Failed to create index", slog.String("sql", indexSQL), slog.Any("error", err))
		} else {
			logger.Debug("Created index", slog.String("sql", indexSQL))
		}
	}

	return nil
}
