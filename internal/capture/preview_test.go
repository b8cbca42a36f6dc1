package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/doc-capture/internal/extraction"
)

func samplePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func sampleGIF() []byte {
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	Expect(gif.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

// samplePDF builds a single blank page PDF with a valid xref table
func samplePDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 72 72] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// decodePreview returns the image embedded in a PNG data URL
func decodePreview(preview string) image.Image {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(preview, "data:image/png;base64,"))
	Expect(err).NotTo(HaveOccurred())
	img, format, err := image.Decode(bytes.NewReader(raw))
	Expect(err).NotTo(HaveOccurred())
	Expect(format).To(Equal("png"))
	return img
}

var _ = Describe("DataURLEncoder", func() {
	var (
		ctx     context.Context
		doc     extraction.Document
		preview string
		err     error
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	JustBeforeEach(func() {
		preview, err = DataURLEncoder{}.Encode(ctx, doc)
	})

	When("the document is a JPEG", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "id.jpg", ContentType: "image/jpeg", Data: []byte("jpeg payload")}
		})

		It("should embed the bytes unchanged", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(preview).To(Equal("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg payload"))))
		})
	})

	When("the declared type has parameters and odd casing", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "id", ContentType: " Image/PNG; foo=bar ", Data: samplePNG()}
		})

		It("should normalize the type", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(preview).To(HavePrefix("data:image/png;base64,"))
		})
	})

	When("the type is unknown but the bytes are a PNG", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "scan", ContentType: "application/octet-stream", Data: samplePNG()}
		})

		It("should sniff the type from the content", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(preview).To(HavePrefix("data:image/png;base64,"))
		})
	})

	When("the type is missing but the extension is known", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "photo.GIF", Data: sampleGIF()}
		})

		It("should use the extension", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(preview).To(HavePrefix("data:image/gif;base64,"))
		})
	})

	When("the format is decodable but not displayable", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "scan", ContentType: "image/x-scanner", Data: sampleGIF()}
		})

		It("should convert it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(preview).To(HavePrefix("data:image/png;base64,"))

			raw, decodeErr := base64.StdEncoding.DecodeString(strings.TrimPrefix(preview, "data:image/png;base64,"))
			Expect(decodeErr).NotTo(HaveOccurred())
			_, format, decodeErr := image.Decode(bytes.NewReader(raw))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the document is a PDF", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "licence.pdf", ContentType: "application/pdf", Data: samplePDF()}
		})

		It("should render the first page as PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(preview).To(HavePrefix("data:image/png;base64,"))
			Expect(decodePreview(preview).Bounds().Empty()).To(BeFalse())
		})
	})

	When("the PDF is corrupt", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "licence.pdf", ContentType: "application/pdf", Data: []byte("%PDF garbage")}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("converting PDF to image")))
			Expect(preview).To(BeEmpty())
		})
	})

	When("the document is HEIC", func() {
		BeforeEach(func() {
			data, readErr := os.ReadFile(filepath.Join("testdata", "sample.heic"))
			Expect(readErr).NotTo(HaveOccurred())
			doc = extraction.Document{Filename: "IMG_0001.HEIC", Data: data}
		})

		It("should decode it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(preview).To(HavePrefix("data:image/png;base64,"))
			Expect(decodePreview(preview).Bounds().Empty()).To(BeFalse())
		})
	})

	When("a HEIC file is truncated", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "IMG_0002.heic", ContentType: "image/heic", Data: []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00")}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("decoding HEIC/HEIF image")))
		})
	})

	When("the bytes are not an image", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(preview).To(BeEmpty())
		})
	})

	When("the document is empty", func() {
		BeforeEach(func() {
			doc = extraction.Document{Filename: "empty.jpg", ContentType: "image/jpeg"}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ErrEmptyDocument))
		})
	})

	When("the context is already cancelled", func() {
		BeforeEach(func() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(context.Background())
			cancel()
			doc = extraction.Document{Filename: "id.jpg", ContentType: "image/jpeg", Data: []byte("jpeg payload")}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})

var _ = Describe("content type helpers", func() {
	Describe("isHEICFormat", func() {
		It("should detect HEIC brands", func() {
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"))).To(BeTrue())
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmif1\x00\x00\x00\x00"))).To(BeTrue())
		})

		It("should reject other data", func() {
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x00\x00"))).To(BeFalse())
			Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		})
	})

	Describe("ContentTypeFromFilename", func() {
		It("should map known extensions", func() {
			Expect(ContentTypeFromFilename("a.JPEG")).To(Equal("image/jpeg"))
			Expect(ContentTypeFromFilename("a.heic")).To(Equal("image/heic"))
			Expect(ContentTypeFromFilename("a.pdf")).To(Equal("application/pdf"))
		})

		It("should fall back to octet-stream", func() {
			Expect(ContentTypeFromFilename("a.xyz")).To(Equal("application/octet-stream"))
			Expect(ContentTypeFromFilename("noext")).To(Equal("application/octet-stream"))
		})
	})

	Describe("resolveContentType", func() {
		It("should prefer the declared type", func() {
			Expect(resolveContentType("a.png", "image/jpeg", nil)).To(Equal("image/jpeg"))
		})

		It("should recognise HEIC bytes without a name or type", func() {
			Expect(resolveContentType("", "", []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"))).To(Equal("image/heic"))
		})
	})
})
