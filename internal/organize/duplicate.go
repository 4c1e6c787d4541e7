package organize

import (
	"context"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kilimcininkoroglu/earbound/internal/link"
)

// TitleSource looks up the remote title of a link
type TitleSource interface {
	Title(ctx context.Context, rawLink string) (string, error)
}

// DefaultTitleTimeout bounds the remote title lookup
const DefaultTitleTimeout = 5 * time.Second

// titleWords is how many leading title words are matched against filenames
const titleWords = 3

// DuplicateDetector guesses whether a link was downloaded before.
// The answer is advisory.
type DuplicateDetector struct {
	Titles  TitleSource
	Timeout time.Duration
}

// MightBeDuplicate never fails: any error along the way yields false.
func (d *DuplicateDetector) MightBeDuplicate(ctx context.Context, rawLink, dir string) bool {
	c, err := link.Classify(rawLink)
	if err != nil {
		return false
	}

	switch c.Provider {
	case link.ProviderSpotify:
		return HasAudio(dir)

	case link.ProviderYouTube:
		if d == nil || d.Titles == nil {
			return false
		}
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = DefaultTitleTimeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		title, err := d.Titles.Title(ctx, rawLink)
		if err != nil {
			log.WithError(err).Debug("duplicate check: title lookup failed")
			return false
		}
		return nameSharesTitleWord(dir, title)
	}
	return false
}

// nameSharesTitleWord reports whether any file in dir contains one of
// the first few words of title, ignoring case.
func nameSharesTitleWord(dir, title string) bool {
	words := strings.Fields(strings.ToLower(title))
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	if len(words) == 0 {
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		for _, w := range words {
			if strings.Contains(name, w) {
				return true
			}
		}
	}
	return false
}
