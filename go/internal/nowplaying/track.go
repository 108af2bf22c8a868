package nowplaying

// Track represents a full now-playing report from the playback source. It is
// authoritative as of the instant it was received; every newer report
// replaces it wholesale.
type Track struct {
	Title      string  `json:"track"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	Duration   float64 `json:"duration"`
	Elapsed    float64 `json:"elapsed"`
	Playing    bool    `json:"isPlaying"`
	ArtworkURL string  `json:"artworkURL,omitempty"`
}

// ProgressSample is a lightweight position correction. It carries no
// metadata; it exists to reset extrapolation drift between full reports.
type ProgressSample struct {
	Elapsed  float64 `json:"elapsed"`
	Duration float64 `json:"duration"`
	Playing  bool    `json:"isPlaying"`
}

// StateUpdate flips play/pause and may carry a partial set of Track fields.
// Pointer fields distinguish "absent" from zero values so only the fields
// the source sent are merged.
type StateUpdate struct {
	Playing    bool     `json:"isPlaying"`
	Title      *string  `json:"track,omitempty"`
	Artist     *string  `json:"artist,omitempty"`
	Album      *string  `json:"album,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	Elapsed    *float64 `json:"elapsed,omitempty"`
	ArtworkURL *string  `json:"artworkURL,omitempty"`
}

// MergeInto applies the update to t: the playing flag always, every other
// field only when present. Shallow overwrite, no clearing of absent fields.
func (u StateUpdate) MergeInto(t *Track) {
	t.Playing = u.Playing
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Artist != nil {
		t.Artist = *u.Artist
	}
	if u.Album != nil {
		t.Album = *u.Album
	}
	if u.Duration != nil {
		t.Duration = *u.Duration
	}
	if u.Elapsed != nil {
		t.Elapsed = *u.Elapsed
	}
	if u.ArtworkURL != nil {
		t.ArtworkURL = *u.ArtworkURL
	}
}
