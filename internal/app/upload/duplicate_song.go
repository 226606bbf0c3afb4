package upload

import (
	"context"
	"regexp"
	"strings"
)

// DuplicateSongCheck rejects uploads of a song already in the catalog.
// Detects:
// - Same normalized title by the same main artist (remasters, edits, live takes)
// Excludes:
// - Covers (same title, different artist)
type DuplicateSongCheck struct {
	catalog Catalog
}

// NewDuplicateSongCheck creates a new duplicate song check.
func NewDuplicateSongCheck(catalog Catalog) *DuplicateSongCheck {
	return &DuplicateSongCheck{catalog: catalog}
}

func (f *DuplicateSongCheck) Name() string {
	return "duplicate_song_check"
}

func (f *DuplicateSongCheck) Check(ctx context.Context, c *Candidate) Result {
	title := normalizeTitle(c.Request.Title)
	artist := mainArtist(c.Request.Artist)
	if title == "" || artist == "" {
		return Accept()
	}

	for _, s := range f.catalog.Songs() {
		if normalizeTitle(s.Title) == title && mainArtist(s.Artist) == artist {
			return Reject(CodeDuplicateSong)
		}
	}
	return Accept()
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`), // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),    // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),
		regexp.MustCompile(`\s*-\s*live\b.*$`), // "- Live at Wembley"
		regexp.MustCompile(`\s*\((from|ft\.?|feat\.?)\s.*?\)`),
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),
		regexp.MustCompile(`\s*-?\s*single\s+version`),
	}
	spaces         = regexp.MustCompile(`\s+`)
	artistSplitter = regexp.MustCompile(`\s*(,|&|\bx\b|\bft\.?|\bfeat\.?|\bfeaturing\b)\s*`)
)

// normalizeTitle removes remaster and version details from a title.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, p := range remasterPatterns {
		normalized = p.ReplaceAllString(normalized, "")
	}
	for _, p := range versionPatterns {
		normalized = p.ReplaceAllString(normalized, "")
	}
	normalized = spaces.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

// mainArtist returns the first credited artist, lowercased.
func mainArtist(artist string) string {
	first := artistSplitter.Split(strings.ToLower(strings.TrimSpace(artist)), 2)[0]
	return spaces.ReplaceAllString(strings.TrimSpace(first), " ")
}
