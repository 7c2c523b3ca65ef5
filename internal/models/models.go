package models

import (
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Platform identifies a streaming service.
type Platform string

const (
	Spotify Platform = "spotify"
	YouTube Platform = "youtube"
)

// Platforms lists every supported platform in parse order.
var Platforms = []Platform{Spotify, YouTube}

// Name returns the user-facing platform name.
func (p Platform) Name() string {
	switch p {
	case Spotify:
		return "Spotify"
	case YouTube:
		return "YouTube Music"
	default:
		return string(p)
	}
}

// Other returns the counterpart platform a playlist is converted to.
func (p Platform) Other() Platform {
	if p == Spotify {
		return YouTube
	}
	return Spotify
}

func (p Platform) Valid() bool {
	return p == Spotify || p == YouTube
}

func (p Platform) String() string { return string(p) }

// ParsePlatform accepts a platform identifier or a common alias.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spotify", "spot", "a":
		return Spotify, nil
	case "youtube", "ytmusic", "youtube-music", "yt", "b":
		return YouTube, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}
