package models

import "time"

// Genre is a movie genre reference as served by Filmweb.
type Genre struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"not null"`
}

// Director is a director reference (id + name).
type Director struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"not null"`
}

// CastMember is a main-cast reference (id + name).
type CastMember struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"not null"`
}

// Country is a production country reference (id + ISO code).
type Country struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Code string `gorm:"not null"`
}

// Movie holds the metadata of a single film. The original title is always
// present; Title carries the localized title only when Filmweb serves one.
// UpdatedAt is maintained by the store on every write and is what the
// staleness checks read.
type Movie struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Title     *string
	OrigTitle string `gorm:"not null"`
	IntlTitle *string
	Year      int `gorm:"not null"`
	Duration  *int

	Genres    []Genre      `gorm:"many2many:movie_genres"`
	Directors []Director   `gorm:"many2many:movie_directors"`
	Cast      []CastMember `gorm:"many2many:movie_cast"`
	Countries []Country    `gorm:"many2many:movie_countries"`
}

// DisplayTitle returns the localized title, falling back to the
// international title and finally the original title.
func (m *Movie) DisplayTitle() string {
	if m.Title != nil {
		return *m.Title
	}
	if m.IntlTitle != nil {
		return *m.IntlTitle
	}
	return m.OrigTitle
}

// MovieRating is the live public vote counter for a movie: sample size,
// mean rate, want-to-see count and one bucket per score 1-10. Buckets the
// remote omits stay zero. One row per movie.
type MovieRating struct {
	MovieID   int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Count     int
	Rate      float64
	WantToSee int
	Vote1     int
	Vote2     int
	Vote3     int
	Vote4     int
	Vote5     int
	Vote6     int
	Vote7     int
	Vote8     int
	Vote9     int
	Vote10    int
}

// UserRating is one user's vote on one movie. A sync replaces a user's
// whole rating set, so (UserID, MovieID) is the key.
type UserRating struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	MovieID   int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Rate     int
	Favorite bool
	// ViewDate is an integer date in YYYYMMDD form, as served by Filmweb.
	ViewDate int
}

// UserDetails describes a Filmweb account: the primary user or one of
// their friends. DisplayName is only set when the remote exposes a
// personal-data block.
type UserDetails struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name        string `gorm:"not null"`
	DisplayName *string
}

// UserSimilarity is Filmweb's taste-similarity score between the primary
// user and one friend, with the number of movies both have rated.
type UserSimilarity struct {
	UserID        int64 `gorm:"primaryKey;autoIncrement:false"`
	SimilarUserID int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Similarity   float64
	SharedMovies int
}
