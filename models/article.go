package models

// Sentinel values substituted when a field extractor finds nothing.
const (
	TitleNotFound       = "Title not found"
	ContentNotAvailable = "Content not available"
)

// ArticleRecord is the structured output of extracting one article page.
// Records are created once by the extractor and never mutated.
type ArticleRecord struct {
	// Ordinal is the 1-based position of the URL in the resolved link list.
	Ordinal int `json:"ordinal"`

	URL string `json:"url"`

	// Title is the trimmed heading text, or TitleNotFound.
	Title string `json:"title"`

	// Content holds up to five qualifying paragraphs separated by a blank
	// line, or ContentNotAvailable.
	Content string `json:"content"`

	// ImageRef is the stored cover image path. Empty when no image was saved.
	ImageRef string `json:"image_ref,omitempty"`
}

// HasImage reports whether a cover image was stored for the article.
func (a ArticleRecord) HasImage() bool {
	return a.ImageRef != ""
}

// WordFrequencyEntry is one repeated word from headline analysis.
type WordFrequencyEntry struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}
