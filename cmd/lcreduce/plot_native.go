//go:build !purego && !js

package main

import (
	"fmt"

	"gocv.io/x/gocv"

	"lcreduce/pkg/lcreduce"
	"lcreduce/pkg/render"
)

// writePlot encodes through OpenCV, so any extension imwrite knows
// (.jpg, .png, .tif, .bmp, .webp) works.
func writePlot(pass *lcreduce.PassResult, opts render.Options, path string) error {
	img, err := render.Render(pass, opts)
	if err != nil {
		return err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("converting plot: %w", err)
	}
	defer mat.Close()
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("could not write plot: %s", path)
	}
	return nil
}
