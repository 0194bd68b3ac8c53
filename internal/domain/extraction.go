package domain

// Pages is a paginated document opened for text extraction. Page numbers start at 1.
type Pages interface {
	NumPages() int
	PageText(n int) (string, error)
}

// PageOpener opens a raw document buffer for page-by-page extraction.
type PageOpener interface {
	Open(data []byte) (Pages, error)
}
