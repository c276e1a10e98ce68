package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/functionRuntime"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaas"
)

const (
	FunctionKey = "example.image.resize"
	ImageKey    = "image"
)

func main() {
	router := oaas.NewRouter(nil, nil)
	router.HandleFunc(FunctionKey, handler)
	functionRuntime.Start(router)
}

// Inspired by https://github.com/spcl/serverless-benchmarks/blob/master/benchmarks/200.multimedia/210.thumbnailer/python/function.py
func handler(ctx context.Context, ic *oaas.InvocationContext) (*oaas.Completion, error) {
	w, err := dimension(ic, "width")
	if err != nil {
		return nil, err
	}
	h, err := dimension(ic, "height")
	if err != nil {
		return nil, err
	}

	rc, err := ic.LoadMainFile(ctx, ImageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	input, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	resized, err := resizeImage(input, w, h)
	if err != nil {
		return nil, fmt.Errorf("resize failed: %w", err)
	}

	if err := ic.UploadBytes(ctx, ImageKey, resized); err != nil {
		return nil, err
	}

	return ic.CreateCompletion(oaas.OutputData(map[string]any{
		"width":  w,
		"height": h,
		"size":   len(resized),
	})), nil
}

func dimension(ic *oaas.InvocationContext, name string) (int, error) {
	raw := ic.Args().GetOr(name, "128")
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func resizeImage(input []byte, w, h int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, nil); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
