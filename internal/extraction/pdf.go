package extraction

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // direct PNG uploads

	"github.com/gen2brain/go-fitz"
)

// pageImages rasterizes an uploaded document into JPEG page images for the
// vision model. PDFs are rendered page by page with mupdf; JPEG and PNG
// uploads are re-encoded as a single page.
func pageImages(data []byte, maxPages int) ([][]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return pdfPages(data, maxPages)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported document format: %w", err)
	}

	encoded, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return [][]byte{encoded}, nil
}

func pdfPages(data []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > maxPages {
		pages = maxPages
	}

	images := make([][]byte, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		encoded, err := encodeJPEG(img)
		if err != nil {
			return nil, err
		}
		images = append(images, encoded)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no pages rendered from PDF")
	}
	return images, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}
	return buf.Bytes(), nil
}
