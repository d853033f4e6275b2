package filmweb

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mswiatek/filmweb-backup/models"
)

// authStub answers the token exchange so typed endpoint tests can focus
// on their own paths.
func authStub(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/jwt" {
			http.SetCookie(w, &http.Cookie{Name: "JWT", Value: "jwt"})
			return
		}
		next(w, r)
	}
}

func TestFetchUserRatingsDrainsPages(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logged/vote/title/film", r.URL.Path)
		calls.Add(1)
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`[{"rate":8,"entity":743825,"favorite":true,"viewDate":20231220,"timestamp":1725664955310}]`))
		case "2":
			_, _ = w.Write([]byte(`[{"rate":8,"entity":875717,"viewDate":20221218,"timestamp":1729188998841}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))

	ratings, err := client.FetchUserRatings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.UserRating{
		{MovieID: 743825, Rate: 8, Favorite: true, ViewDate: 20231220},
		{MovieID: 875717, Rate: 8, Favorite: false, ViewDate: 20221218},
	}, ratings)
	assert.Equal(t, int32(3), calls.Load(), "two pages plus the empty terminator")
}

func TestFetchUserRatingsStopsOnNonListPage(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`[{"rate":7,"entity":1,"viewDate":20230101}]`))
			return
		}
		// A non-list body ends pagination; it is not an error.
		_, _ = w.Write([]byte(`{"message":"no more pages"}`))
	}))

	ratings, err := client.FetchUserRatings(context.Background())
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchUserRatingsEmptyHistory(t *testing.T) {
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))

	ratings, err := client.FetchUserRatings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestFetchFriendRatingsScopedByName(t *testing.T) {
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logged/friend/johndoe/vote/title/film", r.URL.Path)
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`[{"rate":6,"entity":42,"viewDate":20230301}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	ratings, err := client.FetchFriendRatings(context.Background(), "johndoe")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, int64(42), ratings[0].MovieID)
}

func TestFetchMovieDetails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/film/743825/preview", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"year": 2006,
			"title": {"title": "Renesans", "country": "PL", "lang": "pl"},
			"originalTitle": {"title": "Renaissance", "country": "FR", "lang": "fr", "original": true},
			"genres": [{"id": 24, "name": {"text": "Thriller"}, "nameKey": "24"}],
			"duration": 96,
			"directors": [{"id": 1161002, "name": "Christian Volckman"}],
			"mainCast": [{"id": 46520, "name": "Daniel Craig"}],
			"countries": [{"id": 20, "code": "FR"}]
		}`))
	}))

	movie, err := client.FetchMovieDetails(context.Background(), 743825)
	require.NoError(t, err)
	require.NotNil(t, movie.Title)
	assert.Equal(t, "Renesans", *movie.Title)
	assert.Equal(t, "Renaissance", movie.OrigTitle)
	assert.Nil(t, movie.IntlTitle)
	assert.Equal(t, 2006, movie.Year)
	require.NotNil(t, movie.Duration)
	assert.Equal(t, 96, *movie.Duration)
	assert.Equal(t, []models.Genre{{ID: 24, Name: "Thriller"}}, movie.Genres)
	assert.Equal(t, []models.Director{{ID: 1161002, Name: "Christian Volckman"}}, movie.Directors)
	assert.Equal(t, []models.CastMember{{ID: 46520, Name: "Daniel Craig"}}, movie.Cast)
	assert.Equal(t, []models.Country{{ID: 20, Code: "FR"}}, movie.Countries)
}

func TestFetchMovieRating(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/film/743825/rating", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":429,"rate":6.00699,"countWantToSee":1284,"countVote2":6,"countVote10":11}`))
	}))

	rating, err := client.FetchMovieRating(context.Background(), 743825)
	require.NoError(t, err)
	assert.Equal(t, &models.MovieRating{
		MovieID:   743825,
		Count:     429,
		Rate:      6.00699,
		WantToSee: 1284,
		Vote2:     6,
		Vote10:    11,
	}, rating)
}

func TestFetchUserDetails(t *testing.T) {
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logged/info", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":1234567,"name":"johndoe","personalData":{"firstname":"John","surname":"Doe"}}`))
	}))

	user, err := client.FetchUserDetails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), user.ID)
	assert.Equal(t, "johndoe", user.Name)
	require.NotNil(t, user.DisplayName)
	assert.Equal(t, "John Doe", *user.DisplayName)
}

func TestFetchUserFriends(t *testing.T) {
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logged/friends", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"1234567": {"name": "johndoe"},
			"12345678": {"name": "janedoe", "firstname": "Jane"},
			"123456789": {"name": "joedoe", "firstname": "Joe", "surname": "Doe"}
		}`))
	}))

	friends, err := client.FetchUserFriends(context.Background())
	require.NoError(t, err)
	require.Len(t, friends, 3)

	assert.Equal(t, int64(1234567), friends[0].ID)
	assert.Equal(t, "johndoe", friends[0].Name)
	assert.Nil(t, friends[0].DisplayName)

	require.NotNil(t, friends[1].DisplayName)
	assert.Equal(t, "Jane", *friends[1].DisplayName)

	require.NotNil(t, friends[2].DisplayName)
	assert.Equal(t, "Joe Doe", *friends[2].DisplayName)
}

func TestFetchUserFriendsNoContent(t *testing.T) {
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	friends, err := client.FetchUserFriends(context.Background())
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestFetchUserFriendsSimilarities(t *testing.T) {
	client := newTestClient(t, authStub(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logged/friends/similarities", r.URL.Path)
		_, _ = w.Write([]byte(`[[1, 72.16858, 332], [2, 71.22369, 96], [3, 54.450515, 79]]`))
	}))

	similarities, err := client.FetchUserFriendsSimilarities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.UserSimilarity{
		{SimilarUserID: 1, Similarity: 72.16858, SharedMovies: 332},
		{SimilarUserID: 2, Similarity: 71.22369, SharedMovies: 96},
		{SimilarUserID: 3, Similarity: 54.450515, SharedMovies: 79},
	}, similarities)
}

func TestFetchMovieDetailsPropagatesFetchError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))

	_, err := client.FetchMovieDetails(context.Background(), 1)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
}
