package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaas"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaastest"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newRouter() *oaas.Router {
	router := oaas.NewRouter(nil, nil)
	router.HandleFunc(FunctionKey, handler)
	return router
}

func TestThumbnailer(t *testing.T) {
	p := oaastest.NewPlatform(t)

	b := p.NewTask(FunctionKey).
		Arg("width", "16").
		Arg("height", "8").
		MainFile(ImageKey, samplePNG(t, 64, 64)).
		Output(ImageKey)

	_, c, err := newRouter().HandleTask(context.Background(), b.JSON())
	require.NoError(t, err)
	require.True(t, c.Success)
	assert.Equal(t, []string{ImageKey}, c.Output.UpdatedKeys)
	assert.Equal(t, 16, c.Output.Data["width"])

	stored, ok := p.Object(b.Task().Output.ID, ImageKey)
	require.True(t, ok)
	img, err := jpeg.Decode(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestThumbnailer_InvalidArgs(t *testing.T) {
	p := oaastest.NewPlatform(t)

	raw := p.NewTask(FunctionKey).Arg("width", "-1").Output(ImageKey).JSON()
	_, c, err := newRouter().HandleTask(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, c.Success)
	require.NotNil(t, c.ErrorMsg)
	assert.Contains(t, *c.ErrorMsg, "invalid width")
}

func TestThumbnailer_NotAnImage(t *testing.T) {
	p := oaastest.NewPlatform(t)

	raw := p.NewTask(FunctionKey).MainFile(ImageKey, []byte("plain text")).Output(ImageKey).JSON()
	_, c, err := newRouter().HandleTask(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, c.Success)
	require.NotNil(t, c.ErrorMsg)
	assert.Contains(t, *c.ErrorMsg, "resize failed")
}
