package domain

// Article is one search result, optionally enriched with the text scraped
// from its page.
type Article struct {
	URL     string
	Heading string
	Snippet string
	// Content is empty when the page could not be fetched or had no text.
	Content string
}
