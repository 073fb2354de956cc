// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging turns uploaded user photos into square JPEG avatars.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Avatar geometry and limits.
const (
	PhotoSize     = 500
	PhotoQuality  = 90
	MaxPhotoBytes = 5 << 20
	// PhotoDir is the subdirectory of the upload root holding user photos.
	PhotoDir = "users"
)

var (
	// ErrNotAnImage is returned for data that is not a supported image.
	ErrNotAnImage = errors.New("not an image")
	// ErrTooLarge is returned when the upload exceeds MaxPhotoBytes.
	ErrTooLarge = errors.New("image too large")
)

// Processor handles user photo processing using pure Go libraries.
type Processor struct {
	uploadDir string
}

// NewProcessor creates a processor writing below uploadDir.
func NewProcessor(uploadDir string) *Processor {
	return &Processor{uploadDir: uploadDir}
}

// PhotoDir returns the directory photos are written to.
func (p *Processor) PhotoDir() string {
	return filepath.Join(p.uploadDir, PhotoDir)
}

// ProcessUserPhoto decodes an uploaded image, applies its EXIF orientation,
// crops it to a centred PhotoSize square and stores it as JPEG. It returns
// the stored file name, which is what the user record references.
func (p *Processor) ProcessUserPhoto(r io.Reader, userID int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return "", ErrTooLarge
	}

	if detectFormat(data) == "" {
		return "", ErrNotAnImage
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	square := imaging.Fill(img, PhotoSize, PhotoSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, square, &jpeg.Options{Quality: PhotoQuality}); err != nil {
		return "", fmt.Errorf("encoding photo: %w", err)
	}

	filename := photoPrefix(userID) + uuid.NewString() + ".jpeg"
	if err := p.saveImageFile(filename, buf.Bytes()); err != nil {
		return "", err
	}
	return filename, nil
}

// RemoveUserPhoto deletes a photo that ProcessUserPhoto stored for userID.
// Names belonging to other users or not produced by ProcessUserPhoto are
// ignored.
func (p *Processor) RemoveUserPhoto(userID int64, filename string) error {
	if !strings.HasPrefix(filename, photoPrefix(userID)) || filepath.Base(filename) != filename {
		return nil
	}
	err := os.Remove(filepath.Join(p.PhotoDir(), filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing photo: %w", err)
	}
	return nil
}

func photoPrefix(userID int64) string {
	return "user-" + strconv.FormatInt(userID, 10) + "-"
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation applies an EXIF orientation (1-8) to img.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// saveImageFile writes data to the photo directory.
func (p *Processor) saveImageFile(filename string, data []byte) error {
	dir := p.PhotoDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating photo directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return fmt.Errorf("saving photo: %w", err)
	}
	return nil
}
