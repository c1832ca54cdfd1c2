package transform

import (
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
)

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
	imageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphRe  = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
)

// Service flattens HTML fragments (feed descriptions, search snippets)
// into single-line text suitable for prompt context.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToText converts an HTML fragment to plain text. Link text is kept,
// URLs, images and emphasis markers are removed and whitespace collapsed.
// Input without markup is only whitespace-normalised.
func (s *Service) HTMLToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return collapse(html.UnescapeString(fragment))
	}

	mdConverter := md.NewConverter("", true, nil)
	converted, err := mdConverter.ConvertString(fragment)
	if err != nil || strings.TrimSpace(converted) == "" {
		if err != nil {
			s.logger.Debug().Err(err).Msg("HTML to markdown conversion failed, stripping tags")
		}
		return stripHTMLTags(fragment)
	}

	converted = imageRe.ReplaceAllString(converted, "")
	converted = linkRe.ReplaceAllString(converted, "$1")
	converted = emphRe.ReplaceAllString(converted, "$1")
	converted = strings.NewReplacer("\\", "", "#", "", ">", "").Replace(converted)
	return collapse(converted)
}

// stripHTMLTags removes tags and decodes entities for fallback cases
func stripHTMLTags(htmlStr string) string {
	return collapse(html.UnescapeString(tagRe.ReplaceAllString(htmlStr, " ")))
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
