//go:build purego || js

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"lcreduce/pkg/lcreduce"
	"lcreduce/pkg/render"
)

func writePlot(pass *lcreduce.PassResult, opts render.Options, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return render.WriteFile(pass, opts, path)
	default:
		return fmt.Errorf("unsupported plot format %q (use .jpg or .png)", filepath.Ext(path))
	}
}
