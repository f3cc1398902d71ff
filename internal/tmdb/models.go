package tmdb

// SearchResult is a normalized TV search hit.
type SearchResult struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	OriginalName     string `json:"original_name"`
	Overview         string `json:"overview"`
	FirstAirDate     string `json:"first_air_date"`
	Year             int    `json:"year"`
	PosterURL        string `json:"poster_url,omitempty"`
	Adult            bool   `json:"adult"`
	NumberOfSeasons  *int   `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes *int   `json:"number_of_episodes,omitempty"`
}

// SearchResponse carries search hits plus the query that produced
// them, which differs from the submitted query when a fallback
// strategy found the results.
type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	EffectiveQuery string         `json:"effective_query,omitempty"`
}

// Episode is a normalized episode record.
type Episode struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	StillPath     string `json:"still_path,omitempty"`
	Runtime       int    `json:"runtime,omitempty"`
}

// Season is a normalized season record, optionally with episodes.
type Season struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Overview     string    `json:"overview"`
	AirDate      string    `json:"air_date"`
	SeasonNumber int       `json:"season_number"`
	EpisodeCount int       `json:"episode_count"`
	PosterPath   string    `json:"poster_path,omitempty"`
	Episodes     []Episode `json:"episodes,omitempty"`
}

// Series is a normalized series record.
type Series struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	Overview         string   `json:"overview"`
	FirstAirDate     string   `json:"first_air_date"`
	Year             int      `json:"year"`
	Status           string   `json:"status"`
	PosterPath       string   `json:"poster_path,omitempty"`
	BackdropPath     string   `json:"backdrop_path,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	NumberOfSeasons  int      `json:"number_of_seasons"`
	NumberOfEpisodes int      `json:"number_of_episodes"`
	Adult            bool     `json:"adult"`
	Seasons          []Season `json:"seasons,omitempty"`
}

// TokenStatus is the outcome of a token verification.
type TokenStatus struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Wire types below mirror the upstream API shapes.

type tvResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   *string `json:"poster_path"`
	Adult        bool    `json:"adult"`
}

type searchTVResponse struct {
	Page         int        `json:"page"`
	Results      []tvResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type seasonStub struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	AirDate      string `json:"air_date"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	PosterPath   string `json:"poster_path"`
}

type tvDetails struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	OriginalName     string       `json:"original_name"`
	Overview         string       `json:"overview"`
	FirstAirDate     string       `json:"first_air_date"`
	Status           string       `json:"status"`
	PosterPath       *string      `json:"poster_path"`
	BackdropPath     *string      `json:"backdrop_path"`
	Genres           []genre      `json:"genres"`
	NumberOfSeasons  int          `json:"number_of_seasons"`
	NumberOfEpisodes int          `json:"number_of_episodes"`
	Adult            bool         `json:"adult"`
	Seasons          []seasonStub `json:"seasons"`
}

type episodeDetails struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	AirDate       string  `json:"air_date"`
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
	StillPath     *string `json:"still_path"`
	Runtime       *int    `json:"runtime"`
}

type seasonDetails struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Overview     string           `json:"overview"`
	AirDate      string           `json:"air_date"`
	SeasonNumber int              `json:"season_number"`
	PosterPath   *string          `json:"poster_path"`
	Episodes     []episodeDetails `json:"episodes"`
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
