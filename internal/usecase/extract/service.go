// Package extract turns an ordered corpus of uploaded documents into one text blob.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/logger"
)

// Policy decides what happens when a page or a document cannot be read.
type Policy string

// Extraction policies.
const (
	// PolicySkip records the failure, logs it and continues.
	PolicySkip Policy = "skip"
	// PolicyAbort fails the whole extraction with domain.ErrExtractionFailed.
	PolicyAbort Policy = "abort"
)

// Supported content types.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySkip, PolicyAbort:
		return p, nil
	case "":
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown extraction policy %q", s)
	}
}

// Document is one uploaded file. ContentType may be empty; it is sniffed then.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the extracted text blob with extraction statistics.
type Result struct {
	Text         string
	Documents    int // documents that were opened
	Pages        int // pages that were read
	SkippedPages []domain.PageError
}

// Service concatenates the plain text of every page of every document in
// upload order, page order, with no separator and no page metadata.
type Service struct {
	openers map[string]PageOpener
	policy  Policy
}

// New creates an extractor reading PDFs with pdf and plain text natively.
func New(pdf PageOpener) *Service {
	return &Service{
		openers: map[string]PageOpener{
			ContentTypePDF:  pdf,
			ContentTypeText: textOpener{},
		},
		policy: PolicySkip,
	}
}

// WithPolicy sets the failure policy.
func (s *Service) WithPolicy(p Policy) *Service {
	if p != "" {
		s.policy = p
	}
	return s
}

// Policy returns the configured failure policy.
func (s *Service) Policy() Policy { return s.policy }

// Extract reads docs in order. A corpus that yields no text fails with
// domain.ErrNoExtractableText under either policy.
func (s *Service) Extract(ctx context.Context, docs []Document) (Result, error) {
	if len(docs) == 0 {
		return Result{}, domain.ErrNoDocuments
	}

	var (
		res Result
		buf strings.Builder
	)
	for _, doc := range docs {
		pages, err := s.open(doc)
		if err != nil {
			if err := s.fail(ctx, &res, domain.PageError{Document: doc.Name, Err: err}); err != nil {
				return Result{}, err
			}
			continue
		}
		res.Documents++

		for n := 1; n <= pages.NumPages(); n++ {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("extract %s: %w", doc.Name, err)
			}
			text, err := pages.PageText(n)
			if err != nil {
				if err := s.fail(ctx, &res, domain.PageError{Document: doc.Name, Page: n, Err: err}); err != nil {
					return Result{}, err
				}
				continue
			}
			buf.WriteString(strings.ToValidUTF8(text, string(utf8.RuneError)))
			res.Pages++
		}
	}

	res.Text = buf.String()
	if strings.TrimSpace(res.Text) == "" {
		return Result{}, fmt.Errorf(
			"%d documents, %d skipped pages: %w",
			len(docs), len(res.SkippedPages), domain.ErrNoExtractableText,
		)
	}
	return res, nil
}

// fail applies the policy to one failure. It returns a non-nil error only under PolicyAbort.
func (s *Service) fail(ctx context.Context, res *Result, pageErr domain.PageError) error {
	if s.policy == PolicyAbort {
		return fmt.Errorf("%w: %w", domain.ErrExtractionFailed, &pageErr)
	}
	res.SkippedPages = append(res.SkippedPages, pageErr)
	logger.FromContext(ctx).Warn("extraction failure skipped",
		zap.String("document", pageErr.Document),
		zap.Int("page", pageErr.Page),
		zap.Error(pageErr.Err),
	)
	return nil
}

func (s *Service) open(doc Document) (domain.Pages, error) {
	contentType := detectContentType(doc)
	opener, ok := s.openers[contentType]
	if !ok || opener == nil {
		return nil, fmt.Errorf("%q: %w", contentType, domain.ErrUnsupportedDocument)
	}
	pages, err := opener.Open(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return pages, nil
}

// detectContentType trusts a declared type unless it is missing or generic.
func detectContentType(doc Document) string {
	if doc.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(doc.ContentType); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	switch {
	case bytes.HasPrefix(doc.Data, []byte("%PDF-")):
		return ContentTypePDF
	case strings.HasSuffix(strings.ToLower(doc.Name), ".pdf"):
		return ContentTypePDF
	case utf8.Valid(doc.Data) && !bytes.ContainsRune(doc.Data, 0):
		return ContentTypeText
	default:
		return "application/octet-stream"
	}
}

// textOpener serves a plain text upload as a single page.
type textOpener struct{}

func (textOpener) Open(data []byte) (domain.Pages, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("text document is not valid UTF-8")
	}
	return textPages(data), nil
}

type textPages []byte

func (p textPages) NumPages() int { return 1 }

func (p textPages) PageText(int) (string, error) { return string(p), nil }
