package analyzer

import (
	"net/url"
	"strings"

	"github.com/FranksOps/serprank/internal/serp"
)

// Tier is the strength of a domain match.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierSubdomain
	TierPartial
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSubdomain:
		return "subdomain"
	case TierPartial:
		return "partial"
	default:
		return "none"
	}
}

// MatchResult is the first item of a batch that matched a target.
type MatchResult struct {
	Link     string `json:"link"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Tier     Tier   `json:"-"`
}

// Target is a normalized domain with its dot segments split once up front.
type Target struct {
	Domain   string
	segments []string
}

// NewTarget normalizes raw (a bare domain or a URL) into a Target.
func NewTarget(raw string) Target {
	d := NormalizeDomain(raw)
	return Target{Domain: d, segments: splitSegments(d)}
}

// NormalizeDomain lowercases raw, strips scheme, port, path and any leading
// "www." labels. Applying it twice gives the same result as applying it once.
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Hostname()
		} else {
			_, s, _ = strings.Cut(s, "://")
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		s = s[at+1:]
	}
	if host, _, ok := strings.Cut(s, ":"); ok {
		s = host
	}
	s = strings.TrimRight(s, ".")
	for strings.HasPrefix(s, "www.") {
		s = s[len("www."):]
	}
	return s
}

// Hostname returns the normalized hostname of a result link.
func Hostname(link string) string {
	return NormalizeDomain(link)
}

// Classify reports how host matches target. host and target must both be
// normalized.
func Classify(host string, target Target) Tier {
	if host == "" || target.Domain == "" {
		return TierNone
	}
	if host == target.Domain {
		return TierExact
	}
	if strings.HasSuffix(host, "."+target.Domain) {
		return TierSubdomain
	}
	if partialMatch(splitSegments(host), target.segments) {
		return TierPartial
	}
	return TierNone
}

// FirstMatch scans items in order and returns the first one whose hostname
// matches target at any tier. An earlier partial match wins over a later exact
// one. Items carrying an error or no link never match.
func FirstMatch(items []serp.SearchItem, target Target) (MatchResult, bool) {
	if target.Domain == "" {
		return MatchResult{}, false
	}
	for _, it := range items {
		if it.Error != "" || it.Link == "" {
			continue
		}
		if tier := Classify(Hostname(it.Link), target); tier != TierNone {
			return MatchResult{Link: it.Link, Title: it.Title, Position: it.Position, Tier: tier}, true
		}
	}
	return MatchResult{}, false
}

// partialMatch holds when every target segment is a substring of at least one
// host segment, in any order.
func partialMatch(hostSegs, targetSegs []string) bool {
	if len(targetSegs) == 0 {
		return false
	}
	for _, ts := range targetSegs {
		found := false
		for _, hs := range hostSegs {
			if strings.Contains(hs, ts) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitSegments(d string) []string {
	if d == "" {
		return nil
	}
	parts := strings.Split(d, ".")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}
