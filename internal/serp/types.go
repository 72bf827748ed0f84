package serp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects the kind of results a provider returns.
type Mode string

const (
	ModeSearch Mode = "search"
	ModeMaps   Mode = "maps"
)

// SearchItem is one ranked result, normalized across providers.
// Position is the absolute rank across all pages of a query, not the index
// within a page.
type SearchItem struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet,omitempty"`
	Link     string `json:"link"`
	Position int    `json:"position"`
	Query    string `json:"query"`
	Page     int    `json:"page"`
	Error    string `json:"error,omitempty"`
	Place    *Place `json:"place,omitempty"`
}

// Place carries the maps-specific fields of a result.
type Place struct {
	Address      string         `json:"address,omitempty"`
	Latitude     float64        `json:"latitude,omitempty"`
	Longitude    float64        `json:"longitude,omitempty"`
	Rating       float64        `json:"rating,omitempty"`
	RatingCount  int            `json:"ratingCount,omitempty"`
	Type         string         `json:"type,omitempty"`
	Types        []string       `json:"types,omitempty"`
	Website      string         `json:"website,omitempty"`
	PhoneNumber  string         `json:"phoneNumber,omitempty"`
	OpeningHours map[string]any `json:"openingHours,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	CID          string         `json:"cid,omitempty"`
	FID          string         `json:"fid,omitempty"`
	PlaceID      string         `json:"placeId,omitempty"`
}

// ResultPage is the normalized response to a single provider call.
// Page is 1-based.
type ResultPage struct {
	Items        []SearchItem `json:"items"`
	Query        string       `json:"query"`
	Page         int          `json:"page"`
	TotalResults int          `json:"totalResults"`
	HasMorePages bool         `json:"hasMorePages"`
	Provider     string       `json:"provider"`
	Mode         Mode         `json:"mode"`
	Timestamp    time.Time    `json:"timestamp"`
	Error        string       `json:"error,omitempty"`
}

// Rank is the outcome of hunting a domain within a query's results.
//
// The zero value means "not found, bound undetermined" and encodes as JSON null.
// A found rank encodes as its position, an exhausted budget as ">limit".
type Rank struct {
	Position int
	Exceeded bool
	Limit    int
}

// RankAt returns a found rank.
func RankAt(position int) Rank {
	return Rank{Position: position}
}

// RankBeyond returns the sentinel for a scan that ended without a match
// at the result budget.
func RankBeyond(limit int) Rank {
	return Rank{Exceeded: true, Limit: limit}
}

// Found reports whether the rank holds a matched position.
func (r Rank) Found() bool { return r.Position > 0 }

// IsZero reports whether the rank is the null rank.
func (r Rank) IsZero() bool { return r.Position <= 0 && !r.Exceeded }

// String renders the rank as "5", ">30" or "" for the null rank.
func (r Rank) String() string {
	switch {
	case r.Position > 0:
		return strconv.Itoa(r.Position)
	case r.Exceeded:
		return ">" + strconv.Itoa(r.Limit)
	default:
		return ""
	}
}

// ParseRank is the inverse of Rank.String.
func ParseRank(s string) (Rank, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return Rank{}, nil
	}
	if rest, ok := strings.CutPrefix(s, ">"); ok {
		limit, err := strconv.Atoi(rest)
		if err != nil {
			return Rank{}, fmt.Errorf("parse rank %q: %w", s, err)
		}
		return RankBeyond(limit), nil
	}
	pos, err := strconv.Atoi(s)
	if err != nil {
		return Rank{}, fmt.Errorf("parse rank %q: %w", s, err)
	}
	return RankAt(pos), nil
}

func (r Rank) MarshalJSON() ([]byte, error) {
	switch {
	case r.Position > 0:
		return []byte(strconv.Itoa(r.Position)), nil
	case r.Exceeded:
		return json.Marshal(r.String())
	default:
		return []byte("null"), nil
	}
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*r = Rank{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}
	parsed, err := ParseRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
