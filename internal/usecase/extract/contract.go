package extract

import "github.com/kailas-cloud/bioscope/internal/domain"

// PageOpener opens one document type for page-by-page text extraction.
type PageOpener = domain.PageOpener
