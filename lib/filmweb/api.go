package filmweb

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mswiatek/filmweb-backup/models"
)

// Payload shapes as served by the Filmweb API. Every optional field is a
// pointer or defaults to its zero value; mappers decide which absences
// are faults.

type titlePayload struct {
	Title string `json:"title"`
}

type genrePayload struct {
	ID   int64 `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
}

type personPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type countryPayload struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

type moviePayload struct {
	Title              *titlePayload    `json:"title"`
	OriginalTitle      *titlePayload    `json:"originalTitle"`
	InternationalTitle *titlePayload    `json:"internationalTitle"`
	Year               *int             `json:"year"`
	Duration           *int             `json:"duration"`
	Genres             []genrePayload   `json:"genres"`
	Directors          []personPayload  `json:"directors"`
	MainCast           []personPayload  `json:"mainCast"`
	Countries          []countryPayload `json:"countries"`
}

type movieRatingPayload struct {
	Count          *int     `json:"count"`
	Rate           *float64 `json:"rate"`
	CountWantToSee int      `json:"countWantToSee"`
	CountVote1     int      `json:"countVote1"`
	CountVote2     int      `json:"countVote2"`
	CountVote3     int      `json:"countVote3"`
	CountVote4     int      `json:"countVote4"`
	CountVote5     int      `json:"countVote5"`
	CountVote6     int      `json:"countVote6"`
	CountVote7     int      `json:"countVote7"`
	CountVote8     int      `json:"countVote8"`
	CountVote9     int      `json:"countVote9"`
	CountVote10    int      `json:"countVote10"`
}

type userRatingPayload struct {
	Entity   *int64 `json:"entity"`
	Rate     *int   `json:"rate"`
	Favorite bool   `json:"favorite"`
	ViewDate *int   `json:"viewDate"`
}

type personalDataPayload struct {
	Firstname string `json:"firstname"`
	Surname   string `json:"surname"`
}

type userPayload struct {
	ID           *int64               `json:"id"`
	Name         *string              `json:"name"`
	PersonalData *personalDataPayload `json:"personalData"`
}

type friendPayload struct {
	Name      *string `json:"name"`
	Firstname string  `json:"firstname"`
	Surname   string  `json:"surname"`
}

// FetchMovieDetails fetches and maps the metadata of one movie.
func (c *Client) FetchMovieDetails(ctx context.Context, movieID int64) (*models.Movie, error) {
	body, err := c.Fetch(ctx, fmt.Sprintf("/film/%d/preview", movieID), false)
	if err != nil {
		return nil, err
	}
	return mapMovie(movieID, body)
}

// FetchMovieRating fetches and maps the aggregate public rating of one
// movie.
func (c *Client) FetchMovieRating(ctx context.Context, movieID int64) (*models.MovieRating, error) {
	body, err := c.Fetch(ctx, fmt.Sprintf("/film/%d/rating", movieID), false)
	if err != nil {
		return nil, err
	}
	return mapMovieRating(movieID, body)
}

// FetchUserDetails fetches the logged-in user's account details.
func (c *Client) FetchUserDetails(ctx context.Context) (*models.UserDetails, error) {
	body, err := c.Fetch(ctx, "/logged/info", true)
	if err != nil {
		return nil, err
	}
	return mapUserDetails(body)
}

// FetchUserRatings drains the logged-in user's full rating list.
func (c *Client) FetchUserRatings(ctx context.Context) ([]models.UserRating, error) {
	p := newPager(c, func(page int) string {
		return fmt.Sprintf("/logged/vote/title/film?page=%d", page)
	})
	return c.mapRatingPages(ctx, p)
}

// FetchFriendRatings drains a friend's full rating list. The endpoint is
// scoped by the friend's handle name, not their id.
func (c *Client) FetchFriendRatings(ctx context.Context, name string) ([]models.UserRating, error) {
	p := newPager(c, func(page int) string {
		return fmt.Sprintf("/logged/friend/%s/vote/title/film?page=%d", url.PathEscape(name), page)
	})
	return c.mapRatingPages(ctx, p)
}

func (c *Client) mapRatingPages(ctx context.Context, p *pager) ([]models.UserRating, error) {
	raws, err := p.all(ctx)
	if err != nil {
		return nil, err
	}

	var ratings []models.UserRating
	for _, raw := range raws {
		rating, err := mapUserRating(raw)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, *rating)
	}
	return ratings, nil
}

// FetchUserFriends fetches the logged-in user's friend list. The payload
// is a map from string-typed numeric ids to partial name records; the
// result is sorted by id.
func (c *Client) FetchUserFriends(ctx context.Context) ([]models.UserDetails, error) {
	body, err := c.Fetch(ctx, "/logged/friends", true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	return mapFriends(body)
}

// FetchUserFriendsSimilarities fetches the taste-similarity scores
// between the logged-in user and each of their friends.
func (c *Client) FetchUserFriendsSimilarities(ctx context.Context) ([]models.UserSimilarity, error) {
	body, err := c.Fetch(ctx, "/logged/friends/similarities", true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	return mapSimilarities(body)
}

func mapMovie(movieID int64, body json.RawMessage) (*models.Movie, error) {
	if body == nil {
		return nil, &MappingError{Entity: "movie", Reason: "empty payload"}
	}
	var payload moviePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MappingError{Entity: "movie", Reason: err.Error()}
	}
	if payload.OriginalTitle == nil || payload.OriginalTitle.Title == "" {
		return nil, &MappingError{Entity: "movie", Reason: "missing originalTitle"}
	}
	if payload.Year == nil {
		return nil, &MappingError{Entity: "movie", Reason: "missing year"}
	}

	movie := &models.Movie{
		ID:        movieID,
		OrigTitle: payload.OriginalTitle.Title,
		Year:      *payload.Year,
		Duration:  payload.Duration,
	}
	if payload.Title != nil {
		movie.Title = &payload.Title.Title
	}
	if payload.InternationalTitle != nil {
		movie.IntlTitle = &payload.InternationalTitle.Title
	}
	for _, g := range payload.Genres {
		movie.Genres = append(movie.Genres, models.Genre{ID: g.ID, Name: g.Name.Text})
	}
	for _, d := range payload.Directors {
		movie.Directors = append(movie.Directors, models.Director{ID: d.ID, Name: d.Name})
	}
	for _, m := range payload.MainCast {
		movie.Cast = append(movie.Cast, models.CastMember{ID: m.ID, Name: m.Name})
	}
	for _, country := range payload.Countries {
		movie.Countries = append(movie.Countries, models.Country{ID: country.ID, Code: country.Code})
	}
	return movie, nil
}

func mapMovieRating(movieID int64, body json.RawMessage) (*models.MovieRating, error) {
	if body == nil {
		return nil, &MappingError{Entity: "movie rating", Reason: "empty payload"}
	}
	var payload movieRatingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MappingError{Entity: "movie rating", Reason: err.Error()}
	}
	if payload.Count == nil {
		return nil, &MappingError{Entity: "movie rating", Reason: "missing count"}
	}
	if payload.Rate == nil {
		return nil, &MappingError{Entity: "movie rating", Reason: "missing rate"}
	}

	return &models.MovieRating{
		MovieID:   movieID,
		Count:     *payload.Count,
		Rate:      *payload.Rate,
		WantToSee: payload.CountWantToSee,
		Vote1:     payload.CountVote1,
		Vote2:     payload.CountVote2,
		Vote3:     payload.CountVote3,
		Vote4:     payload.CountVote4,
		Vote5:     payload.CountVote5,
		Vote6:     payload.CountVote6,
		Vote7:     payload.CountVote7,
		Vote8:     payload.CountVote8,
		Vote9:     payload.CountVote9,
		Vote10:    payload.CountVote10,
	}, nil
}

func mapUserRating(body json.RawMessage) (*models.UserRating, error) {
	var payload userRatingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MappingError{Entity: "user rating", Reason: err.Error()}
	}
	if payload.Entity == nil {
		return nil, &MappingError{Entity: "user rating", Reason: "missing entity"}
	}
	if payload.Rate == nil {
		return nil, &MappingError{Entity: "user rating", Reason: "missing rate"}
	}
	if payload.ViewDate == nil {
		return nil, &MappingError{Entity: "user rating", Reason: "missing viewDate"}
	}

	return &models.UserRating{
		MovieID:  *payload.Entity,
		Rate:     *payload.Rate,
		Favorite: payload.Favorite,
		ViewDate: *payload.ViewDate,
	}, nil
}

func mapUserDetails(body json.RawMessage) (*models.UserDetails, error) {
	if body == nil {
		return nil, &MappingError{Entity: "user details", Reason: "empty payload"}
	}
	var payload userPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MappingError{Entity: "user details", Reason: err.Error()}
	}
	if payload.ID == nil {
		return nil, &MappingError{Entity: "user details", Reason: "missing id"}
	}
	if payload.Name == nil {
		return nil, &MappingError{Entity: "user details", Reason: "missing name"}
	}

	user := &models.UserDetails{
		ID:   *payload.ID,
		Name: *payload.Name,
	}
	// The display name exists only when the account exposes its
	// personal-data block; there is no fallback to the handle here.
	if payload.PersonalData != nil {
		display := joinName(payload.PersonalData.Firstname, payload.PersonalData.Surname)
		if display != "" {
			user.DisplayName = &display
		}
	}
	return user, nil
}

func mapFriends(body json.RawMessage) ([]models.UserDetails, error) {
	var payload map[string]friendPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MappingError{Entity: "friends", Reason: err.Error()}
	}

	friends := make([]models.UserDetails, 0, len(payload))
	for key, friend := range payload {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, &MappingError{Entity: "friends", Reason: fmt.Sprintf("non-numeric friend id %q", key)}
		}
		if friend.Name == nil {
			return nil, &MappingError{Entity: "friends", Reason: fmt.Sprintf("friend %d has no name", id)}
		}

		details := models.UserDetails{ID: id, Name: *friend.Name}
		if display := joinName(friend.Firstname, friend.Surname); display != "" {
			details.DisplayName = &display
		}
		friends = append(friends, details)
	}

	sort.Slice(friends, func(i, j int) bool { return friends[i].ID < friends[j].ID })
	return friends, nil
}

func mapSimilarities(body json.RawMessage) ([]models.UserSimilarity, error) {
	// The payload is a list of positional [id, similarity, sharedMovies]
	// triples; there are no field names to key on.
	var payload [][]json.Number
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MappingError{Entity: "similarities", Reason: err.Error()}
	}

	similarities := make([]models.UserSimilarity, 0, len(payload))
	for _, triple := range payload {
		if len(triple) != 3 {
			return nil, &MappingError{Entity: "similarities", Reason: fmt.Sprintf("expected 3 elements, got %d", len(triple))}
		}
		id, err := triple[0].Int64()
		if err != nil {
			return nil, &MappingError{Entity: "similarities", Reason: err.Error()}
		}
		score, err := triple[1].Float64()
		if err != nil {
			return nil, &MappingError{Entity: "similarities", Reason: err.Error()}
		}
		movies, err := triple[2].Int64()
		if err != nil {
			return nil, &MappingError{Entity: "similarities", Reason: err.Error()}
		}
		similarities = append(similarities, models.UserSimilarity{
			SimilarUserID: id,
			Similarity:    score,
			SharedMovies:  int(movies),
		})
	}
	return similarities, nil
}

// joinName assembles a display name from whichever of the first and last
// name fields are present.
func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
