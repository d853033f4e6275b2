package backup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mswiatek/filmweb-backup/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeAPI serves canned responses and records every call in order.
type fakeAPI struct {
	ops *[]string

	user          *models.UserDetails
	ratings       []models.UserRating
	friendRatings map[string][]models.UserRating
	friends       []models.UserDetails
	similarities  []models.UserSimilarity

	userErr error
}

func (f *fakeAPI) record(op string) {
	*f.ops = append(*f.ops, op)
}

func (f *fakeAPI) FetchUserDetails(ctx context.Context) (*models.UserDetails, error) {
	f.record("api.user")
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeAPI) FetchUserRatings(ctx context.Context) ([]models.UserRating, error) {
	f.record("api.ratings")
	return f.ratings, nil
}

func (f *fakeAPI) FetchFriendRatings(ctx context.Context, name string) ([]models.UserRating, error) {
	f.record("api.friendRatings " + name)
	return f.friendRatings[name], nil
}

func (f *fakeAPI) FetchUserFriends(ctx context.Context) ([]models.UserDetails, error) {
	f.record("api.friends")
	return f.friends, nil
}

func (f *fakeAPI) FetchUserFriendsSimilarities(ctx context.Context) ([]models.UserSimilarity, error) {
	f.record("api.similarities")
	return f.similarities, nil
}

func (f *fakeAPI) FetchMovieDetails(ctx context.Context, movieID int64) (*models.Movie, error) {
	f.record(fmt.Sprintf("api.movie %d", movieID))
	return &models.Movie{ID: movieID, OrigTitle: "Movie", Year: 2000}, nil
}

func (f *fakeAPI) FetchMovieRating(ctx context.Context, movieID int64) (*models.MovieRating, error) {
	f.record(fmt.Sprintf("api.movieRating %d", movieID))
	return &models.MovieRating{MovieID: movieID, Count: 1, Rate: 7}, nil
}

// fakeStore records writes and answers staleness from configured sets.
type fakeStore struct {
	ops *[]string

	freshUsers        map[int64]bool
	freshMovies       map[int64]bool
	freshMovieRatings map[int64]bool

	upsertUserErr error
}

func (f *fakeStore) record(op string) {
	*f.ops = append(*f.ops, op)
}

func (f *fakeStore) StaleMovie(ctx context.Context, movieID int64, ttl time.Duration) (bool, error) {
	return !f.freshMovies[movieID], nil
}

func (f *fakeStore) StaleMovieRating(ctx context.Context, movieID int64, ttl time.Duration) (bool, error) {
	return !f.freshMovieRatings[movieID], nil
}

func (f *fakeStore) StaleUser(ctx context.Context, userID int64, ttl time.Duration) (bool, error) {
	return !f.freshUsers[userID], nil
}

func (f *fakeStore) UpsertMovie(ctx context.Context, movie *models.Movie) error {
	f.record(fmt.Sprintf("store.movie %d", movie.ID))
	return nil
}

func (f *fakeStore) UpsertMovieRating(ctx context.Context, rating *models.MovieRating) error {
	f.record(fmt.Sprintf("store.movieRating %d", rating.MovieID))
	return nil
}

func (f *fakeStore) UpsertUserDetails(ctx context.Context, user *models.UserDetails) error {
	if f.upsertUserErr != nil {
		return f.upsertUserErr
	}
	f.record(fmt.Sprintf("store.user %d", user.ID))
	return nil
}

func (f *fakeStore) ReplaceRatings(ctx context.Context, userID int64, ratings []models.UserRating) error {
	f.record(fmt.Sprintf("store.ratings %d (%d)", userID, len(ratings)))
	return nil
}

func (f *fakeStore) ReplaceSimilarities(ctx context.Context, userID int64, similarities []models.UserSimilarity) error {
	f.record(fmt.Sprintf("store.similarities %d (%d)", userID, len(similarities)))
	return nil
}

func newFixture() (*fakeAPI, *fakeStore, *[]string) {
	ops := &[]string{}
	api := &fakeAPI{
		ops:           ops,
		user:          &models.UserDetails{ID: 1, Name: "johndoe"},
		friendRatings: map[string][]models.UserRating{},
	}
	store := &fakeStore{
		ops:               ops,
		freshUsers:        map[int64]bool{},
		freshMovies:       map[int64]bool{},
		freshMovieRatings: map[int64]bool{},
	}
	return api, store, ops
}

func run(t *testing.T, api *fakeAPI, store *fakeStore) error {
	t.Helper()
	return New(api, store, DefaultTTLs(), testLogger()).Run(context.Background())
}

func TestRunFreshPrimaryIsNoOp(t *testing.T) {
	api, store, ops := newFixture()
	store.freshUsers[1] = true

	require.NoError(t, run(t, api, store))
	assert.Equal(t, []string{"api.user"}, *ops, "a fresh primary record skips the whole traversal")
}

func TestRunFullTraversal(t *testing.T) {
	api, store, ops := newFixture()
	api.ratings = []models.UserRating{{MovieID: 743825, Rate: 8, ViewDate: 20231220}}
	api.friends = []models.UserDetails{{ID: 2, Name: "janedoe"}}
	api.friendRatings["janedoe"] = []models.UserRating{{MovieID: 875717, Rate: 6, ViewDate: 20221218}}
	api.similarities = []models.UserSimilarity{{SimilarUserID: 2, Similarity: 70, SharedMovies: 30}}

	require.NoError(t, run(t, api, store))

	assert.Equal(t, []string{
		"api.user",
		"api.ratings",
		"store.ratings 1 (1)",
		"api.movie 743825",
		"store.movie 743825",
		"api.movieRating 743825",
		"store.movieRating 743825",
		"api.friends",
		"api.friendRatings janedoe",
		"store.ratings 2 (1)",
		"api.movie 875717",
		"store.movie 875717",
		"api.movieRating 875717",
		"store.movieRating 875717",
		"store.user 2",
		"api.similarities",
		"store.similarities 1 (1)",
		"store.user 1",
	}, *ops)
}

func TestRunWritesPrimaryDetailsLast(t *testing.T) {
	api, store, ops := newFixture()
	api.ratings = []models.UserRating{{MovieID: 5, Rate: 7, ViewDate: 20230101}}

	require.NoError(t, run(t, api, store))
	require.NotEmpty(t, *ops)
	assert.Equal(t, "store.user 1", (*ops)[len(*ops)-1])
}

func TestRunSkipsFreshFriendEntirely(t *testing.T) {
	api, store, ops := newFixture()
	api.friends = []models.UserDetails{{ID: 2, Name: "janedoe"}}
	api.similarities = []models.UserSimilarity{{SimilarUserID: 2, Similarity: 70, SharedMovies: 30}}
	store.freshUsers[2] = true

	require.NoError(t, run(t, api, store))

	// The friend's freshness gates their rating fetch too.
	assert.NotContains(t, *ops, "api.friendRatings janedoe")
	assert.NotContains(t, *ops, "store.user 2")
	assert.Contains(t, *ops, "api.similarities", "similarities still run when friends exist")
}

func TestRunNoFriendsSkipsSimilarities(t *testing.T) {
	api, store, ops := newFixture()

	require.NoError(t, run(t, api, store))
	assert.NotContains(t, *ops, "api.similarities")
	assert.Contains(t, *ops, "store.user 1")
}

func TestRunGatesMovieAndRatingIndependently(t *testing.T) {
	api, store, ops := newFixture()
	api.ratings = []models.UserRating{
		{MovieID: 10, Rate: 7, ViewDate: 20230101},
		{MovieID: 20, Rate: 8, ViewDate: 20230201},
	}
	store.freshMovies[10] = true
	store.freshMovieRatings[20] = true

	require.NoError(t, run(t, api, store))

	assert.NotContains(t, *ops, "api.movie 10")
	assert.Contains(t, *ops, "api.movieRating 10")
	assert.Contains(t, *ops, "api.movie 20")
	assert.NotContains(t, *ops, "api.movieRating 20")
}

func TestRunAbortsOnFetchFailure(t *testing.T) {
	api, store, ops := newFixture()
	api.userErr = errors.New("connection reset")

	err := run(t, api, store)
	require.Error(t, err)
	assert.Equal(t, []string{"api.user"}, *ops, "nothing is written after an abort")
}

func TestRunFailedFinalWriteLeavesRecordStale(t *testing.T) {
	api, store, ops := newFixture()
	store.upsertUserErr = errors.New("disk full")

	err := run(t, api, store)
	require.Error(t, err)
	assert.NotContains(t, *ops, "store.user 1")
}

func TestRunEmptyRatingHistoryStillClears(t *testing.T) {
	api, store, ops := newFixture()

	require.NoError(t, run(t, api, store))
	assert.Contains(t, *ops, "store.ratings 1 (0)")
}

func TestDefaultTTLs(t *testing.T) {
	ttls := DefaultTTLs()
	assert.Equal(t, 7*24*time.Hour, ttls.Movie)
	assert.Equal(t, 2*time.Hour, ttls.MovieRating)
	assert.Equal(t, 60*time.Second, ttls.PrimaryUser)
	assert.Equal(t, 24*time.Hour, ttls.Friend)
}
