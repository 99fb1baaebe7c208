// Package pdf rasterizes PDF documents with the poppler command line
// tools. The rest of the pipeline treats it as a black box that turns a
// PDF into one PNG per page.
package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"planvision/internal/util"
)

const renderTimeout = 600 * time.Second

// RenderOptions controls page rasterization.
type RenderOptions struct {
	// DPI for full-page renders. Detection copies and thumbnails are
	// produced downstream by scaling these, never by re-rendering.
	DPI int
}

// OptionsFromEnv reads render options from the environment with defaults
// suitable for plan sheets (dense linework needs more than screen DPI).
func OptionsFromEnv() RenderOptions {
	return RenderOptions{
		DPI: int(util.GetEnvNumeric("PDF_RENDER_DPI", 200)),
	}
}

func normalizeOptions(options RenderOptions) RenderOptions {
	if options.DPI <= 0 {
		options.DPI = 200
	}
	return options
}

// RenderPages converts a PDF to PNG images, one per page, in page order.
func RenderPages(ctx context.Context, input []byte, options RenderOptions) ([][]byte, error) {
	options = normalizeOptions(options)
	if ctx == nil {
		ctx = context.Background()
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("nanoid: %w", err)
	}
	tmpDir := filepath.Join(os.TempDir(), "planvision-render-"+id)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir tmp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not found in PATH: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	paths, err := renderAllPagePaths(ctx, tmpDir, pdfPath, options.DPI)
	if err != nil {
		return nil, err
	}

	images := make([][]byte, 0, len(paths))
	for _, f := range paths {
		b, readErr := os.ReadFile(f)
		if readErr != nil {
			return nil, fmt.Errorf("read image %s: %w", f, readErr)
		}
		images = append(images, b)
	}

	return images, nil
}

func renderAllPagePaths(
	ctx context.Context,
	tmpDir string,
	pdfPath string,
	dpi int,
) ([]string, error) {
	filePrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(dpi), "-q", pdfPath, filePrefix)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("pdftoppm timed out")
	}
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	paths, err := filepath.Glob(filePrefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob images: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images produced")
	}

	sort.Slice(paths, func(i, j int) bool {
		return extractPageNum(paths[i]) < extractPageNum(paths[j])
	})

	return paths, nil
}

func extractPageNum(path string) int {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".png")
	idx := strings.LastIndexByte(base, '-')
	if idx == -1 || idx+1 >= len(base) {
		return 0
	}
	n, _ := strconv.Atoi(base[idx+1:])
	return n
}

// CountPages returns the number of pages in a PDF document using pdfinfo.
func CountPages(input []byte) (int, error) {
	id, err := gonanoid.New()
	if err != nil {
		return 0, fmt.Errorf("nanoid: %w", err)
	}
	tmpDir := filepath.Join(os.TempDir(), "planvision-count-"+id)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return 0, fmt.Errorf("mkdir tmp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, input, 0o600); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}

	if _, err := exec.LookPath("pdfinfo"); err != nil {
		return 0, fmt.Errorf("pdfinfo not found in PATH: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w", err)
	}

	for line := range strings.SplitSeq(string(out), "\n") {
		if strings.HasPrefix(line, "Pages:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				if pages, err := strconv.Atoi(parts[1]); err == nil {
					return pages, nil
				}
			}
		}
	}

	return 0, fmt.Errorf("pdfinfo output missing page count")
}
