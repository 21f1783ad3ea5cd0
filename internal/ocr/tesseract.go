package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Runner executes an external command and returns its standard output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes name with args
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

// TesseractConfig configures the tesseract backend
type TesseractConfig struct {
	DPI          int      // Rasterization resolution, 300 (default)
	Language     string   // Tesseract language, "eng" (default)
	PageSegMode  int      // --psm value, 6 (default)
	ExtraArgs    []string // Additional tesseract arguments
	PdftoppmPath string   // "pdftoppm" (default)
	BinaryPath   string   // "tesseract" (default)
}

// Tesseract rasterizes pages with pdftoppm and recognizes them with tesseract
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

// NewTesseract creates the tesseract backend. A nil runner uses ExecRunner.
func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PageSegMode <= 0 {
		cfg.PageSegMode = 6
	}
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = "pdftoppm"
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "tesseract"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

// Name returns the backend name
func (t *Tesseract) Name() string {
	return BackendTesseract
}

// Recognize OCRs the first maxPages pages of the PDF at path, or every page
// when maxPages is not positive. A page that fails is kept with empty text
// and zero confidence; the call fails only when rasterizing fails or every
// page fails.
func (t *Tesseract) Recognize(ctx context.Context, path string, maxPages int) (*Result, error) {
	tmp, err := os.MkdirTemp("", "legal-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR work directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	rasterArgs := []string{"-r", strconv.Itoa(t.cfg.DPI), "-gray", "-png"}
	if maxPages > 0 {
		rasterArgs = append(rasterArgs, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	rasterArgs = append(rasterArgs, path, prefix)
	if _, err := t.runner.Run(ctx, t.cfg.PdftoppmPath, rasterArgs...); err != nil {
		return nil, fmt.Errorf("failed to rasterize PDF: %w", err)
	}

	images, err := pageImages(tmp)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("rasterizing produced no pages")
	}

	pages := make([]Page, 0, len(images))
	var errs []string
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := Page{Number: img.number}
		out, err := t.runner.Run(ctx, t.cfg.BinaryPath, t.args(img.path)...)
		if err != nil {
			msg := fmt.Sprintf("error processing page %d: %v", img.number, err)
			t.logger.Error("ocr page failed", "page", img.number, "error", err)
			errs = append(errs, msg)
			pages = append(pages, page)
			continue
		}

		page.Text, page.Confidence = ParseTSV(out)
		t.logger.Info("ocr page processed", "page", img.number, "confidence", page.Confidence)
		pages = append(pages, page)
	}

	if len(errs) == len(pages) {
		return nil, fmt.Errorf("OCR failed on every page: %s", errs[0])
	}

	result := newResult(pages, errs)
	t.logger.Info("ocr completed",
		"path", filepath.Base(path),
		"pages", len(pages),
		"avg_confidence", result.MeanConfidence(),
	)
	return result, nil
}

func (t *Tesseract) args(image string) []string {
	args := []string{image, "stdout", "-l", t.cfg.Language, "--psm", strconv.Itoa(t.cfg.PageSegMode)}
	args = append(args, t.cfg.ExtraArgs...)
	return append(args, "tsv")
}

type pageImage struct {
	number int
	path   string
}

var pageImageName = regexp.MustCompile(`^page-0*(\d+)\.png$`)

// pageImages lists pdftoppm output files ordered by page number
func pageImages(dir string) ([]pageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR work directory: %w", err)
	}
	var images []pageImage
	for _, e := range entries {
		m := pageImageName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		images = append(images, pageImage{number: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].number < images[j].number })
	return images, nil
}

// ParseTSV turns tesseract TSV output into page text and a confidence in
// [0,1]. Words with non-positive confidence are dropped; words on the same
// line are joined by spaces and lines by newlines.
func ParseTSV(data []byte) (string, float64) {
	type lineKey struct{ block, par, line string }

	var (
		lines       []string
		current     []string
		currentKey  lineKey
		haveLine    bool
		confSum     float64
		confCount   int
		columnIndex map[string]int
	)

	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
		current = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if columnIndex == nil {
			columnIndex = make(map[string]int, len(fields))
			for i, name := range fields {
				columnIndex[strings.TrimSpace(name)] = i
			}
			continue
		}

		get := func(name string) string {
			i, ok := columnIndex[name]
			if !ok || i >= len(fields) {
				return ""
			}
			return fields[i]
		}

		text := strings.TrimSpace(get("text"))
		conf, err := strconv.ParseFloat(strings.TrimSpace(get("conf")), 64)
		if err != nil || conf <= 0 || text == "" {
			continue
		}

		key := lineKey{get("block_num"), get("par_num"), get("line_num")}
		if !haveLine || key != currentKey {
			flush()
			currentKey = key
			haveLine = true
		}
		current = append(current, text)
		confSum += conf
		confCount++
	}
	flush()

	if confCount == 0 {
		return strings.Join(lines, "\n"), 0
	}
	return strings.Join(lines, "\n"), confSum / float64(confCount) / 100
}

var _ Recognizer = (*Tesseract)(nil)
