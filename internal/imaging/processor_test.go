// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a simple test image with the given dimensions.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessUserPhoto(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(dir)

	name, err := p.ProcessUserPhoto(bytes.NewReader(encodePNG(t, createTestImage(800, 600))), 42)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(name, "user-42-"), name)
	assert.True(t, strings.HasSuffix(name, ".jpeg"), name)

	f, err := os.Open(filepath.Join(dir, PhotoDir, name))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, PhotoSize, cfg.Width)
	assert.Equal(t, PhotoSize, cfg.Height)
}

func TestProcessUserPhotoUniqueNames(t *testing.T) {
	p := NewProcessor(t.TempDir())
	data := encodePNG(t, createTestImage(50, 50))

	a, err := p.ProcessUserPhoto(bytes.NewReader(data), 1)
	require.NoError(t, err)
	b, err := p.ProcessUserPhoto(bytes.NewReader(data), 1)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestProcessUserPhotoRejects(t *testing.T) {
	p := NewProcessor(t.TempDir())

	_, err := p.ProcessUserPhoto(strings.NewReader("just some text"), 1)
	assert.ErrorIs(t, err, ErrNotAnImage)

	tiff := append([]byte("II*\x00"), make([]byte, 64)...)
	_, err = p.ProcessUserPhoto(bytes.NewReader(tiff), 1)
	assert.ErrorIs(t, err, ErrNotAnImage)

	// A PNG signature followed by garbage fails to decode.
	broken := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	_, err = p.ProcessUserPhoto(bytes.NewReader(broken), 1)
	assert.ErrorIs(t, err, ErrNotAnImage)

	huge := make([]byte, MaxPhotoBytes+10)
	_, err = p.ProcessUserPhoto(bytes.NewReader(huge), 1)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRemoveUserPhoto(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(dir)

	name, err := p.ProcessUserPhoto(bytes.NewReader(encodePNG(t, createTestImage(10, 10))), 3)
	require.NoError(t, err)

	require.NoError(t, p.RemoveUserPhoto(3, name))
	_, err = os.Stat(filepath.Join(dir, PhotoDir, name))
	assert.True(t, os.IsNotExist(err))

	// Missing files and foreign names are ignored.
	assert.NoError(t, p.RemoveUserPhoto(3, name))
	assert.NoError(t, p.RemoveUserPhoto(3, "default.jpg"))
	assert.NoError(t, p.RemoveUserPhoto(1, "user-1/../../etc/passwd"))
}

func TestRemoveUserPhotoOtherOwner(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(dir)

	name, err := p.ProcessUserPhoto(bytes.NewReader(encodePNG(t, createTestImage(10, 10))), 3)
	require.NoError(t, err)

	// Only the owner's id matches the file name prefix.
	for _, id := range []int64{1, 30, 0} {
		require.NoError(t, p.RemoveUserPhoto(id, name))
	}
	assert.FileExists(t, filepath.Join(dir, PhotoDir, name))
}

func TestApplyOrientation(t *testing.T) {
	img := createTestImage(40, 20)

	tests := []struct {
		orientation int
		wantW       int
		wantH       int
	}{
		{1, 40, 20},
		{2, 40, 20},
		{3, 40, 20},
		{4, 40, 20},
		{5, 20, 40},
		{6, 20, 40},
		{7, 20, 40},
		{8, 20, 40},
		{99, 40, 20},
	}

	for _, tt := range tests {
		b := applyOrientation(img, tt.orientation).Bounds()
		assert.Equal(t, tt.wantW, b.Dx(), "orientation %d", tt.orientation)
		assert.Equal(t, tt.wantH, b.Dy(), "orientation %d", tt.orientation)
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "png", detectFormat(encodePNG(t, createTestImage(2, 2))))
	assert.Equal(t, "", detectFormat([]byte("hello")))
}
