package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/logger"
)

// --- mocks ---

type fakePages struct {
	texts []string
	errs  map[int]error
}

func (p *fakePages) NumPages() int { return len(p.texts) }

func (p *fakePages) PageText(n int) (string, error) {
	if err := p.errs[n]; err != nil {
		return "", err
	}
	return p.texts[n-1], nil
}

// fakeOpener keys documents by their content.
type fakeOpener struct {
	docs    map[string]*fakePages
	openErr map[string]error
}

func (o *fakeOpener) Open(data []byte) (domain.Pages, error) {
	if err := o.openErr[string(data)]; err != nil {
		return nil, err
	}
	return o.docs[string(data)], nil
}

func pdfDoc(name, key string) Document {
	return Document{Name: name, ContentType: ContentTypePDF, Data: []byte(key)}
}

// --- tests ---

func TestExtract_ConcatenatesInOrderWithoutSeparator(t *testing.T) {
	opener := &fakeOpener{docs: map[string]*fakePages{
		"a": {texts: []string{"Cells ", "divide."}},
		"b": {texts: []string{"DNA", " replicates."}},
	}}

	res, err := New(opener).Extract(context.Background(), []Document{pdfDoc("a.pdf", "a"), pdfDoc("b.pdf", "b")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Cells divide.DNA replicates." {
		t.Errorf("unexpected blob %q", res.Text)
	}
	if res.Documents != 2 || res.Pages != 4 || len(res.SkippedPages) != 0 {
		t.Errorf("unexpected stats %+v", res)
	}
}

func TestExtract_NoDocuments(t *testing.T) {
	_, err := New(&fakeOpener{}).Extract(context.Background(), nil)
	if !errors.Is(err, domain.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestExtract_SkipPolicyRecordsAndLogs(t *testing.T) {
	pageErr := errors.New("broken font")
	opener := &fakeOpener{
		docs: map[string]*fakePages{
			"a": {texts: []string{"one", "", "three"}, errs: map[int]error{2: pageErr}},
		},
		openErr: map[string]error{"bad": errors.New("bad xref")},
	}

	core, logs := observer.New(zap.WarnLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))

	res, err := New(opener).Extract(ctx, []Document{pdfDoc("a.pdf", "a"), pdfDoc("bad.pdf", "bad")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "onethree" {
		t.Errorf("unexpected blob %q", res.Text)
	}
	if len(res.SkippedPages) != 2 {
		t.Fatalf("expected 2 skipped entries, got %+v", res.SkippedPages)
	}
	if res.SkippedPages[0].Document != "a.pdf" || res.SkippedPages[0].Page != 2 {
		t.Errorf("unexpected first skip %+v", res.SkippedPages[0])
	}
	if res.SkippedPages[1].Document != "bad.pdf" || res.SkippedPages[1].Page != 0 {
		t.Errorf("unexpected second skip %+v", res.SkippedPages[1])
	}
	if res.Documents != 1 || res.Pages != 2 {
		t.Errorf("unexpected stats %+v", res)
	}
	if logs.Len() != 2 {
		t.Errorf("expected 2 warnings, got %d", logs.Len())
	}
}

func TestExtract_AbortPolicy(t *testing.T) {
	opener := &fakeOpener{docs: map[string]*fakePages{
		"a": {texts: []string{"one", "two"}, errs: map[int]error{2: errors.New("broken")}},
	}}

	_, err := New(opener).WithPolicy(PolicyAbort).Extract(context.Background(), []Document{pdfDoc("a.pdf", "a")})
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	var pageErr *domain.PageError
	if !errors.As(err, &pageErr) || pageErr.Page != 2 {
		t.Fatalf("expected PageError for page 2, got %v", err)
	}
}

func TestExtract_NoTextFailsUnderBothPolicies(t *testing.T) {
	for _, policy := range []Policy{PolicySkip, PolicyAbort} {
		t.Run(string(policy), func(t *testing.T) {
			opener := &fakeOpener{docs: map[string]*fakePages{
				"scan": {texts: []string{"", "  \n"}},
			}}
			_, err := New(opener).WithPolicy(policy).Extract(context.Background(), []Document{pdfDoc("scan.pdf", "scan")})
			if !errors.Is(err, domain.ErrNoExtractableText) {
				t.Fatalf("expected ErrNoExtractableText, got %v", err)
			}
		})
	}
}

func TestExtract_AllPagesSkippedIsNoText(t *testing.T) {
	opener := &fakeOpener{openErr: map[string]error{"x": errors.New("encrypted")}}

	_, err := New(opener).Extract(context.Background(), []Document{pdfDoc("x.pdf", "x")})
	if !errors.Is(err, domain.ErrNoExtractableText) {
		t.Fatalf("expected ErrNoExtractableText, got %v", err)
	}
}

func TestExtract_PlainTextPassthrough(t *testing.T) {
	docs := []Document{
		{Name: "notes.txt", Data: []byte("Osmosis moves water.")},
		{Name: "more.txt", ContentType: "text/plain; charset=utf-8", Data: []byte(" Diffusion moves solutes.")},
	}

	res, err := New(&fakeOpener{}).Extract(context.Background(), docs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Osmosis moves water. Diffusion moves solutes." {
		t.Errorf("unexpected blob %q", res.Text)
	}
}

func TestExtract_UnsupportedDocument(t *testing.T) {
	doc := Document{Name: "photo.bin", Data: []byte{0xff, 0xd8, 0x00, 0x10}}

	_, err := New(&fakeOpener{}).WithPolicy(PolicyAbort).Extract(context.Background(), []Document{doc})
	if !errors.Is(err, domain.ErrUnsupportedDocument) {
		t.Fatalf("expected ErrUnsupportedDocument, got %v", err)
	}
}

func TestExtract_InvalidUTF8Replaced(t *testing.T) {
	opener := &fakeOpener{docs: map[string]*fakePages{"a": {texts: []string{"ok\xffok"}}}}

	res, err := New(opener).Extract(context.Background(), []Document{pdfDoc("a.pdf", "a")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Text, "�") || strings.Contains(res.Text, "\xff") {
		t.Errorf("invalid bytes not replaced: %q", res.Text)
	}
}

func TestExtract_CanceledContext(t *testing.T) {
	opener := &fakeOpener{docs: map[string]*fakePages{"a": {texts: []string{"one"}}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(opener).Extract(ctx, []Document{pdfDoc("a.pdf", "a")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{"declared pdf", Document{ContentType: "application/pdf"}, ContentTypePDF},
		{"sniffed pdf", Document{ContentType: "application/octet-stream", Data: []byte("%PDF-1.7")}, ContentTypePDF},
		{"pdf by extension", Document{Name: "Cells.PDF", Data: []byte{0x00}}, ContentTypePDF},
		{"plain text", Document{Data: []byte("hello")}, ContentTypeText},
		{"binary", Document{Data: []byte{0x00, 0xff}}, "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectContentType(tc.doc); got != tc.want {
				t.Errorf("detectContentType() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicySkip {
		t.Errorf("empty policy: got %q, %v", p, err)
	}
	if p, err := ParsePolicy("abort"); err != nil || p != PolicyAbort {
		t.Errorf("abort: got %q, %v", p, err)
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
