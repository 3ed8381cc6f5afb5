package spectrogram

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/micbench-labs/micbench/internal/metadata"
)

const (
	inch        = 72.0
	pageMargin  = 0.5 * inch
	titleOffset = 0.4 * inch
)

// chartTitles maps known analysis chart filenames to their page titles.
// Unknown charts fall back to their base filename.
var chartTitles = map[string]string{
	"spectrograms_ranked_by_wer.png": "All Spectrograms Ranked by Word Error Rate",
	"correlation_analysis.png":       "Audio Feature Correlations with WER",
	"price_vs_wer_analysis.png":      "Price vs Word Error Rate Analysis",
}

// analysisCharts is the fixed appendix order; charts that were never
// rendered are simply left out.
var analysisCharts = []string{
	"spectrograms_ranked_by_wer.png",
	"correlation_analysis.png",
	"price_vs_wer_analysis.png",
}

// CollectPDF binds every rendered spectrogram, one per landscape A4 page
// with a centered title, followed by whichever analysis charts exist in
// pngDir.
func CollectPDF(set metadata.Set, pngDir, outPath string) error {
	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	pages := 0
	for _, sample := range set.Samples {
		pngPath := filepath.Join(pngDir, PNGName(sample))
		if _, err := os.Stat(pngPath); err != nil {
			continue
		}
		if err := addImagePage(pdf, pngPath, sample.Title()); err != nil {
			return err
		}
		pages++
	}

	for _, name := range analysisCharts {
		chartPath := filepath.Join(pngDir, name)
		if _, err := os.Stat(chartPath); err != nil {
			continue
		}
		title, ok := chartTitles[name]
		if !ok {
			title = name
		}
		if err := addImagePage(pdf, chartPath, title); err != nil {
			return err
		}
		pages++
	}

	if pages == 0 {
		return fmt.Errorf("no spectrograms found in %s", pngDir)
	}

	tmp := outPath + ".tmp"
	if err := pdf.OutputFileAndClose(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write collection pdf: %w", err)
	}
	return os.Rename(tmp, outPath)
}

func addImagePage(pdf *fpdf.Fpdf, imagePath, title string) error {
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(pageMargin, titleOffset-14)
	pdf.CellFormat(pageW-2*pageMargin, 14, title, "", 0, "C", false, 0, "")

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	info := pdf.RegisterImageOptions(imagePath, opts)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("load image %s: %w", imagePath, err)
	}

	availW := pageW - 2*pageMargin
	availH := pageH - 2*pageMargin - titleOffset
	scale := availW / info.Width()
	if h := availH / info.Height(); h < scale {
		scale = h
	}
	imgW := info.Width() * scale
	imgH := info.Height() * scale

	x := (pageW - imgW) / 2
	y := (pageH-imgH)/2 + 0.2*inch
	pdf.ImageOptions(imagePath, x, y, imgW, imgH, false, opts, 0, "")
	return pdf.Error()
}
