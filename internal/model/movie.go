package model

import "time"

// Movie represents a row in the `movies` table.  Optional text columns
// use the empty string for NULL; optional numeric columns are pointers.
//
// Fields:
//  MovieID          – primary key.
//  Title            – display title (required, non-empty).
//  ReleaseDate      – release day as days since the Unix epoch.
//  Revenue, Budget  – whole currency units, never negative.
//  Runtime          – minutes.
//  Rating           – average score; when present it must lie in [1,10].
type Movie struct {
	MovieID          int64    `json:"movieId"`
	Title            string   `json:"title"`
	OriginalTitle    string   `json:"originalTitle,omitempty"`
	OriginalLanguage string   `json:"originalLanguage,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	ReleaseDate      *int64   `json:"releaseDate,omitempty"`
	Revenue          *int64   `json:"revenue,omitempty"`
	Budget           *int64   `json:"budget,omitempty"`
	Homepage         string   `json:"homepage,omitempty"`
	Runtime          *int64   `json:"runtime,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	Status           string   `json:"status,omitempty"`
	Country          string   `json:"country,omitempty"`
	Genres           string   `json:"genres,omitempty"`
	Director         string   `json:"director,omitempty"`
	SpokenLanguages  string   `json:"spokenLanguages,omitempty"`
}

// Movies describes the relational movie table and its (releaseDate, rating)
// index, which serves recency-and-quality range queries.
var Movies = &Entity{
	Name: "movies",
	Columns: []Column{
		{Field: "movieId", Name: "movie_id", Kind: KindInteger, PrimaryKey: true},
		{Field: "title", Name: "title", Kind: KindText, Nullable: true},
		{Field: "originalTitle", Name: "original_title", Kind: KindText, Nullable: true},
		{Field: "originalLanguage", Name: "original_language", Kind: KindText, Nullable: true},
		{Field: "overview", Name: "overview", Kind: KindText, Nullable: true},
		{Field: "releaseDate", Name: "release_date", Kind: KindInteger, Nullable: true},
		{Field: "revenue", Name: "revenue", Kind: KindInteger, Nullable: true},
		{Field: "budget", Name: "budget", Kind: KindInteger, Nullable: true},
		{Field: "homepage", Name: "homepage", Kind: KindText, Nullable: true},
		{Field: "runtime", Name: "runtime", Kind: KindInteger, Nullable: true},
		{Field: "rating", Name: "rating", Kind: KindReal, Nullable: true},
		{Field: "status", Name: "status", Kind: KindText, Nullable: true},
		{Field: "country", Name: "country", Kind: KindText, Nullable: true},
		{Field: "genres", Name: "genres", Kind: KindText, Nullable: true},
		{Field: "director", Name: "director", Kind: KindText, Nullable: true},
		{Field: "spokenLanguages", Name: "spoken_languages", Kind: KindText, Nullable: true},
	},
	Indexes: []Index{
		{Name: "idx_release_rating", Fields: []string{"releaseDate", "rating"}},
	},
	Rules: map[string]string{
		"title":    "required",
		"rating":   "min=1,max=10",
		"revenue":  "gte=0",
		"budget":   "gte=0",
		"runtime":  "gte=0",
		"homepage": "url",
	},
	Messages: ratingMessages,
}

var ratingMessages = map[string]string{
	"rating.min": "No movie deserves less than 1",
	"rating.max": "No movie is better than 10",
}

// Values converts m to a record.  Empty optional text and nil numbers are
// left out; a zero MovieID is left out so the backend assigns one.
func (m Movie) Values() Values {
	v := Values{"title": m.Title}
	if m.MovieID != 0 {
		v["movieId"] = m.MovieID
	}
	putText(v, "originalTitle", m.OriginalTitle)
	putText(v, "originalLanguage", m.OriginalLanguage)
	putText(v, "overview", m.Overview)
	putText(v, "homepage", m.Homepage)
	putText(v, "status", m.Status)
	putText(v, "country", m.Country)
	putText(v, "genres", m.Genres)
	putText(v, "director", m.Director)
	putText(v, "spokenLanguages", m.SpokenLanguages)
	if m.ReleaseDate != nil {
		v["releaseDate"] = *m.ReleaseDate
	}
	if m.Revenue != nil {
		v["revenue"] = *m.Revenue
	}
	if m.Budget != nil {
		v["budget"] = *m.Budget
	}
	if m.Runtime != nil {
		v["runtime"] = *m.Runtime
	}
	if m.Rating != nil {
		v["rating"] = *m.Rating
	}
	return v
}

// MovieFromValues builds a Movie from a normalized record.
func MovieFromValues(v Values) Movie {
	return Movie{
		MovieID:          Int(v, "movieId"),
		Title:            Text(v, "title"),
		OriginalTitle:    Text(v, "originalTitle"),
		OriginalLanguage: Text(v, "originalLanguage"),
		Overview:         Text(v, "overview"),
		ReleaseDate:      IntPtr(v, "releaseDate"),
		Revenue:          IntPtr(v, "revenue"),
		Budget:           IntPtr(v, "budget"),
		Homepage:         Text(v, "homepage"),
		Runtime:          IntPtr(v, "runtime"),
		Rating:           RealPtr(v, "rating"),
		Status:           Text(v, "status"),
		Country:          Text(v, "country"),
		Genres:           Text(v, "genres"),
		Director:         Text(v, "director"),
		SpokenLanguages:  Text(v, "spokenLanguages"),
	}
}

const day = 24 * time.Hour

// EpochDay converts t to the day count stored in release_date.
func EpochDay(t time.Time) int64 {
	return t.UTC().Truncate(day).Unix() / int64(day/time.Second)
}

// Released returns the release date as a UTC midnight, or the zero time.
func (m Movie) Released() time.Time {
	if m.ReleaseDate == nil {
		return time.Time{}
	}
	return time.Unix(*m.ReleaseDate*int64(day/time.Second), 0).UTC()
}
