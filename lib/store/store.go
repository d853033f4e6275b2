package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/mswiatek/filmweb-backup/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistent sink for synchronized entities, backed by a
// single long-lived SQLite handle. Every write is a full replacement of
// the affected rows in its own transaction; gorm maintains the UpdatedAt
// stamp the staleness checks read.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the SQLite database at path, running migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		return nil, err
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// DB exposes the underlying handle for read-only callers (health checks,
// serve-mode queries).
func (s *Store) DB() *gorm.DB { return s.db }

// StaleMovie reports whether the movie's metadata must be re-fetched: no
// row, or a row whose last write is older than ttl. A record exactly ttl
// old is still fresh.
func (s *Store) StaleMovie(ctx context.Context, movieID int64, ttl time.Duration) (bool, error) {
	var movie models.Movie
	err := s.db.WithContext(ctx).Select("updated_at").Where("id = ?", movieID).Take(&movie).Error
	return s.stale(movie.UpdatedAt, ttl, err)
}

// StaleMovieRating reports whether the movie's aggregate rating must be
// re-fetched. Gated separately from the metadata: the vote counter churns
// on a much shorter TTL.
func (s *Store) StaleMovieRating(ctx context.Context, movieID int64, ttl time.Duration) (bool, error) {
	var rating models.MovieRating
	err := s.db.WithContext(ctx).Select("updated_at").Where("movie_id = ?", movieID).Take(&rating).Error
	return s.stale(rating.UpdatedAt, ttl, err)
}

// StaleUser reports whether a user record must be re-fetched.
func (s *Store) StaleUser(ctx context.Context, userID int64, ttl time.Duration) (bool, error) {
	var user models.UserDetails
	err := s.db.WithContext(ctx).Select("updated_at").Where("id = ?", userID).Take(&user).Error
	return s.stale(user.UpdatedAt, ttl, err)
}

func (s *Store) stale(updatedAt time.Time, ttl time.Duration, err error) (bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read freshness stamp: %w", err)
	}
	return s.now().Sub(updatedAt) > ttl, nil
}

// UpsertMovie writes a movie and its reference lists, fully superseding
// any previous row and association set for that id.
func (s *Store) UpsertMovie(ctx context.Context, movie *models.Movie) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Omit(clause.Associations).
			Create(movie).Error; err != nil {
			return err
		}

		if err := tx.Model(movie).Association("Genres").Replace(movie.Genres); err != nil {
			return err
		}
		if err := tx.Model(movie).Association("Directors").Replace(movie.Directors); err != nil {
			return err
		}
		if err := tx.Model(movie).Association("Cast").Replace(movie.Cast); err != nil {
			return err
		}
		return tx.Model(movie).Association("Countries").Replace(movie.Countries)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert movie %d: %w", movie.ID, err)
	}
	return nil
}

// UpsertMovieRating writes the aggregate rating row for a movie.
func (s *Store) UpsertMovieRating(ctx context.Context, rating *models.MovieRating) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rating).Error; err != nil {
		return fmt.Errorf("failed to upsert movie rating %d: %w", rating.MovieID, err)
	}
	return nil
}

// UpsertUserDetails writes one user record.
func (s *Store) UpsertUserDetails(ctx context.Context, user *models.UserDetails) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(user).Error; err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	return nil
}

// ReplaceRatings supersedes a user's whole rating set. An empty set still
// clears the previous rows; a replace-write never merges.
func (s *Store) ReplaceRatings(ctx context.Context, userID int64, ratings []models.UserRating) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRating{}).Error; err != nil {
			return err
		}
		if len(ratings) == 0 {
			return nil
		}
		for i := range ratings {
			ratings[i].UserID = userID
		}
		return tx.CreateInBatches(ratings, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace ratings for user %d: %w", userID, err)
	}
	return nil
}

// ReplaceSimilarities supersedes the similarity scores recorded for a
// primary user.
func (s *Store) ReplaceSimilarities(ctx context.Context, userID int64, similarities []models.UserSimilarity) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserSimilarity{}).Error; err != nil {
			return err
		}
		if len(similarities) == 0 {
			return nil
		}
		for i := range similarities {
			similarities[i].UserID = userID
		}
		return tx.CreateInBatches(similarities, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace similarities for user %d: %w", userID, err)
	}
	return nil
}

// RatingRow pairs one of a user's ratings with the stored movie it refers
// to, for export and serve-mode listings.
type RatingRow struct {
	Rating models.UserRating
	Movie  models.Movie
}

// RatingsWithMovies returns a user's stored ratings joined to their
// movies, genres included, ordered by view date then movie id.
func (s *Store) RatingsWithMovies(ctx context.Context, userID int64) ([]RatingRow, error) {
	var ratings []models.UserRating
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("view_date, movie_id").
		Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("failed to load ratings for user %d: %w", userID, err)
	}
	if len(ratings) == 0 {
		return nil, nil
	}

	movieIDs := make([]int64, len(ratings))
	for i, r := range ratings {
		movieIDs[i] = r.MovieID
	}

	var movies []models.Movie
	if err := s.db.WithContext(ctx).
		Preload("Genres").
		Where("id IN ?", movieIDs).
		Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("failed to load movies for user %d: %w", userID, err)
	}
	byID := make(map[int64]models.Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}

	rows := make([]RatingRow, 0, len(ratings))
	for _, r := range ratings {
		rows = append(rows, RatingRow{Rating: r, Movie: byID[r.MovieID]})
	}
	return rows, nil
}

// PrimaryUser returns the most recently written user record, which is the
// primary account: the orchestrator writes it last on every completed run.
func (s *Store) PrimaryUser(ctx context.Context) (*models.UserDetails, error) {
	var user models.UserDetails
	if err := s.db.WithContext(ctx).Order("updated_at desc").Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load primary user: %w", err)
	}
	return &user, nil
}

// Stats summarizes the stored state for the serve-mode stats endpoint.
type Stats struct {
	Movies       int64      `json:"movies"`
	Ratings      int64      `json:"ratings"`
	Users        int64      `json:"users"`
	Similarities int64      `json:"similarities"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
}

// CollectStats counts stored rows and reports the last completed sync.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.Movie{}, &stats.Movies},
		{&models.UserRating{}, &stats.Ratings},
		{&models.UserDetails{}, &stats.Users},
		{&models.UserSimilarity{}, &stats.Similarities},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	user, err := s.PrimaryUser(ctx)
	if err != nil {
		return nil, err
	}
	if user != nil {
		stats.LastSync = &user.UpdatedAt
	}
	return stats, nil
}

// ListRatings pages through every stored rating for the serve-mode
// listing, newest view date first.
func (s *Store) ListRatings(ctx context.Context, page, size int) ([]models.UserRating, error) {
	var ratings []models.UserRating
	if err := s.db.WithContext(ctx).
		Order("view_date desc, movie_id").
		Offset((page - 1) * size).
		Limit(size).
		Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}
