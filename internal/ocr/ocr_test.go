package ocr

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(name string, args []string) ([]byte, error)
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string{name}, args...))
	s.mu.Unlock()
	out, err := s.fn(name, args)
	if err != nil {
		return nil, []byte("stub failure"), err
	}
	return out, nil, nil
}

func (s *stubRunner) called(name string) int {
	n := 0
	for _, c := range s.calls {
		if c[0] == name {
			n++
		}
	}
	return n
}

// writePages mimics pdftoppm: the output prefix is the last argument.
func writePages(args []string, n int) error {
	prefix := args[len(args)-1]
	for i := 1; i <= n; i++ {
		if err := os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte{byte(i)}, 0o600); err != nil {
			return err
		}
	}
	return nil
}

func TestNormalize(t *testing.T) {
	in := "Line 1\t\tfoo   bar  \r\n\r\n\r\n\r\nNext ﬁeld x\fpage"
	assert.Equal(t, "Line 1 foo bar\n\nNext field x\npage", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestMergeText(t *testing.T) {
	raw := "Civil ID 2850-1234-5678\nName: Ali"
	pre := "Civil ID 285012345678"
	want := strings.Join([]string{
		"PREPROCESSED_OCR\nCivil ID 285012345678",
		"RAW_OCR\nCivil ID 2850-1234-5678\nName: Ali",
		"NUMERIC_TOKENS\n285012345678",
		"RAW_NUMERIC_LINES\nCivil ID 2850-1234-5678",
	}, "\n\n")
	assert.Equal(t, want, MergeText(raw, pre))
	assert.Equal(t, "RAW_OCR\nabc 123", MergeText("abc 123", ""))
	assert.Equal(t, "", MergeText(" ", "\n"))
}

func TestMeanTSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t90\tINVOICE\n" +
		"5\t1\t1\t1\t1\t2\t70\t10\t50\t20\t80\tTotal\n" +
		"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n"
	assert.InDelta(t, 0.85, meanTSVConfidence(tsv), 1e-9)
	assert.Equal(t, 0.0, meanTSVConfidence("header only\n"))
}

func TestExtract_Text(t *testing.T) {
	r := &stubRunner{fn: func(string, []string) ([]byte, error) { return nil, errors.New("unexpected") }}
	e := NewEngine(Config{}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), []byte("hello\r\nworld"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", res.Text)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, MethodText, res.Engine)
	assert.Empty(t, r.calls)
}

func TestExtract_ImageWithTSV(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t90\tINVOICE\n" +
		"5\t1\t1\t1\t1\t2\t70\t10\t50\t20\t80\tTotal\n"
	r := &stubRunner{fn: func(name string, args []string) ([]byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte(tsv), nil
		}
		return []byte("INVOICE 2024-01-05\nTotal $12.50\n-----\n"), nil
	}}
	e := NewEngine(Config{EnableTSVConfidence: true, TessdataDir: "/data"}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "INVOICE 2024-01-05\nTotal $12.50", res.Text)
	assert.Equal(t, MethodImageOCR, res.Engine)
	assert.InDelta(t, 0.7*0.85+0.3*0.7, res.Confidence, 1e-9)

	require.Len(t, r.calls, 2)
	assert.Equal(t, "tesseract", r.calls[0][0])
	assert.True(t, strings.HasSuffix(r.calls[0][1], ".jpg"))
	assert.Contains(t, r.calls[0], "--tessdata-dir")
	assert.Contains(t, r.calls[0], "eng")
}

func TestExtract_ScannedPDF(t *testing.T) {
	r := &stubRunner{fn: func(name string, args []string) ([]byte, error) {
		switch name {
		case "pdftotext":
			return []byte("  \f"), nil
		case "pdftoppm":
			return nil, writePages(args, 2)
		case "tesseract":
			if strings.Contains(args[0], "page-1") {
				return []byte("page one"), nil
			}
			return []byte("page two"), nil
		}
		return nil, errors.New("unexpected " + name)
	}}
	e := NewEngine(Config{}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), []byte("%PDF-1.7 scanned"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, MethodPDFOCR, res.Engine)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "page one\n\npage two", res.Text)
	assert.Equal(t, 2, r.called("tesseract"))
}

func TestExtract_PDFTextLayer(t *testing.T) {
	r := &stubRunner{fn: func(name string, args []string) ([]byte, error) {
		if name == "pdftotext" {
			return []byte("Invoice number 12345 for services\fpage two text here\f"), nil
		}
		return nil, errors.New("unexpected " + name)
	}}
	e := NewEngine(Config{}, nil).WithRunner(r)

	// unknown MIME falls back to the PDF signature
	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), "")
	require.NoError(t, err)
	assert.Equal(t, MethodPDFText, res.Engine)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "Invoice number 12345 for services\npage two text here", res.Text)
	assert.Equal(t, 0, r.called("pdftoppm"))
}

func TestExtract_Errors(t *testing.T) {
	r := &stubRunner{fn: func(name string, args []string) ([]byte, error) { return nil, errors.New("boom") }}
	e := NewEngine(Config{}, nil).WithRunner(r)
	ctx := context.Background()

	_, err := e.Extract(ctx, nil, "image/png")
	assert.Error(t, err)

	_, err = e.Extract(ctx, []byte("PK zip"), "application/zip")
	assert.ErrorContains(t, err, "unsupported mime type")

	_, err = e.Extract(ctx, []byte("png"), "image/png")
	assert.ErrorContains(t, err, "tesseract")

	_, err = e.Extract(ctx, []byte("heic"), "image/heic")
	assert.ErrorContains(t, err, "HEIC not supported")
}

func TestRenderPages(t *testing.T) {
	r := &stubRunner{fn: func(name string, args []string) ([]byte, error) {
		return nil, writePages(args, 2)
	}}
	e := NewEngine(Config{DPI: 150}, nil).WithRunner(r)

	pages, err := e.RenderPages(context.Background(), []byte("%PDF"), 1)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, []byte{1}, pages[0])
	assert.Contains(t, r.calls[0], "-l")
	assert.Contains(t, r.calls[0], "150")
}
