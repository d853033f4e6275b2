// Package backup drives one full synchronization traversal: primary user,
// their ratings and movies, their friends, each friend's ratings and
// movies, then the friend-similarity scores. Staleness checks against the
// store gate every remote fetch; the first unrecovered error aborts the
// run and nothing already written is rolled back.
package backup

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/mswiatek/filmweb-backup/models"
)

// API is the slice of the remote client the traversal needs.
type API interface {
	FetchUserDetails(ctx context.Context) (*models.UserDetails, error)
	FetchUserRatings(ctx context.Context) ([]models.UserRating, error)
	FetchFriendRatings(ctx context.Context, name string) ([]models.UserRating, error)
	FetchUserFriends(ctx context.Context) ([]models.UserDetails, error)
	FetchUserFriendsSimilarities(ctx context.Context) ([]models.UserSimilarity, error)
	FetchMovieDetails(ctx context.Context, movieID int64) (*models.Movie, error)
	FetchMovieRating(ctx context.Context, movieID int64) (*models.MovieRating, error)
}

// Store is the slice of the persistent store the traversal needs. The
// staleness reads must not mutate state; the writes are full replacements.
type Store interface {
	StaleMovie(ctx context.Context, movieID int64, ttl time.Duration) (bool, error)
	StaleMovieRating(ctx context.Context, movieID int64, ttl time.Duration) (bool, error)
	StaleUser(ctx context.Context, userID int64, ttl time.Duration) (bool, error)
	UpsertMovie(ctx context.Context, movie *models.Movie) error
	UpsertMovieRating(ctx context.Context, rating *models.MovieRating) error
	UpsertUserDetails(ctx context.Context, user *models.UserDetails) error
	ReplaceRatings(ctx context.Context, userID int64, ratings []models.UserRating) error
	ReplaceSimilarities(ctx context.Context, userID int64, similarities []models.UserSimilarity) error
}

// TTLs are the per-kind freshness windows. Movie metadata barely churns;
// the aggregate rating is a live vote counter; the primary user's short
// window lets a re-run in the same session pick up new votes, while the
// friend window bounds fan-out cost.
type TTLs struct {
	Movie       time.Duration
	MovieRating time.Duration
	PrimaryUser time.Duration
	Friend      time.Duration
}

// DefaultTTLs returns the windows observed to work well in practice.
func DefaultTTLs() TTLs {
	return TTLs{
		Movie:       7 * 24 * time.Hour,
		MovieRating: 2 * time.Hour,
		PrimaryUser: 60 * time.Second,
		Friend:      24 * time.Hour,
	}
}

// Backup runs sync traversals. One traversal is strictly sequential; a
// Backup must not be shared across goroutines.
type Backup struct {
	api    API
	store  Store
	ttls   TTLs
	logger *slog.Logger
}

func New(api API, store Store, ttls TTLs, logger *slog.Logger) *Backup {
	return &Backup{api: api, store: store, ttls: ttls, logger: logger}
}

// Run executes one traversal. The primary user's details are fetched
// unconditionally to decide freshness; if the stored record is fresh the
// run is a no-op. The user's own details are written last so that a crash
// mid-traversal leaves the record stale and the next run retries from the
// top instead of believing itself up to date.
func (b *Backup) Run(ctx context.Context) error {
	user, err := b.api.FetchUserDetails(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch user details: %w", err)
	}
	b.logger.Info("Starting sync", slog.Int64("user_id", user.ID), slog.String("name", user.Name))

	stale, err := b.store.StaleUser(ctx, user.ID, b.ttls.PrimaryUser)
	if err != nil {
		return err
	}
	if !stale {
		b.logger.Info("User record is fresh, nothing to do", slog.Int64("user_id", user.ID))
		return nil
	}

	ratings, err := b.api.FetchUserRatings(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch user ratings: %w", err)
	}
	if err := b.store.ReplaceRatings(ctx, user.ID, ratings); err != nil {
		return err
	}
	b.logger.Info("Synced ratings", slog.Int64("user_id", user.ID), slog.Int("count", len(ratings)))

	for _, rating := range ratings {
		if err := b.syncMovie(ctx, rating.MovieID); err != nil {
			return err
		}
	}

	friends, err := b.api.FetchUserFriends(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch friends: %w", err)
	}
	if len(friends) > 0 {
		for _, friend := range friends {
			if err := b.syncFriend(ctx, friend); err != nil {
				return err
			}
		}

		similarities, err := b.api.FetchUserFriendsSimilarities(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch similarities: %w", err)
		}
		if err := b.store.ReplaceSimilarities(ctx, user.ID, similarities); err != nil {
			return err
		}
		b.logger.Info("Synced similarities", slog.Int("count", len(similarities)))
	}

	if err := b.store.UpsertUserDetails(ctx, user); err != nil {
		return err
	}
	b.logger.Info("Sync complete", slog.Int64("user_id", user.ID))
	return nil
}

// syncFriend mirrors one friend's ratings and the movies they reference.
// A fresh friend record skips the whole subtree, including the rating
// fetch: friend-details freshness deliberately gates friend-ratings
// freshness, matching the remote's observed behavior.
func (b *Backup) syncFriend(ctx context.Context, friend models.UserDetails) error {
	stale, err := b.store.StaleUser(ctx, friend.ID, b.ttls.Friend)
	if err != nil {
		return err
	}
	if !stale {
		b.logger.Debug("Friend record is fresh, skipping", slog.Int64("friend_id", friend.ID))
		return nil
	}

	ratings, err := b.api.FetchFriendRatings(ctx, friend.Name)
	if err != nil {
		return fmt.Errorf("failed to fetch ratings of friend %q: %w", friend.Name, err)
	}
	if err := b.store.ReplaceRatings(ctx, friend.ID, ratings); err != nil {
		return err
	}
	b.logger.Info("Synced friend ratings",
		slog.Int64("friend_id", friend.ID),
		slog.String("name", friend.Name),
		slog.Int("count", len(ratings)))

	for _, rating := range ratings {
		if err := b.syncMovie(ctx, rating.MovieID); err != nil {
			return err
		}
	}

	return b.store.UpsertUserDetails(ctx, &friend)
}

// syncMovie refreshes one movie. Metadata and the aggregate rating live
// on different endpoints with different TTLs and are gated independently:
// a movie can have fresh metadata and a stale rating, or the reverse.
func (b *Backup) syncMovie(ctx context.Context, movieID int64) error {
	stale, err := b.store.StaleMovie(ctx, movieID, b.ttls.Movie)
	if err != nil {
		return err
	}
	if stale {
		movie, err := b.api.FetchMovieDetails(ctx, movieID)
		if err != nil {
			return fmt.Errorf("failed to fetch movie %d: %w", movieID, err)
		}
		if err := b.store.UpsertMovie(ctx, movie); err != nil {
			return err
		}
		b.logger.Debug("Synced movie", slog.Int64("movie_id", movieID))
	}

	stale, err = b.store.StaleMovieRating(ctx, movieID, b.ttls.MovieRating)
	if err != nil {
		return err
	}
	if stale {
		rating, err := b.api.FetchMovieRating(ctx, movieID)
		if err != nil {
			return fmt.Errorf("failed to fetch rating of movie %d: %w", movieID, err)
		}
		if err := b.store.UpsertMovieRating(ctx, rating); err != nil {
			return err
		}
		b.logger.Debug("Synced movie rating", slog.Int64("movie_id", movieID))
	}

	return nil
}
