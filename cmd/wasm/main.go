//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"syscall/js"

	"github.com/rs/zerolog"

	"lcreduce/pkg/config"
	"lcreduce/pkg/lcreduce"
	"lcreduce/pkg/measurements"
	"lcreduce/pkg/render"
)

var (
	lastPass  *lcreduce.PassResult
	lastTitle string
)

func main() {
	js.Global().Set("reduceTable", js.FuncOf(reduceTable))
	js.Global().Set("renderCurves", js.FuncOf(renderCurves))
	select {} // block forever
}

// reduceTable(tableBytes, configYAML) reduces a measurement table or FITS
// light curve and returns per-curve results.
func reduceTable(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("usage: reduceTable(tableBytes, configYAML)")
	}

	jsBytes := args[0]
	data := make([]byte, jsBytes.Get("length").Int())
	js.CopyBytesToGo(data, jsBytes)

	cfg, err := config.Parse([]byte(args[1].String()))
	if err != nil {
		return errorResult("config error: " + err.Error())
	}

	var tbl *lcreduce.Table
	var hdr *measurements.Header
	if bytes.HasPrefix(data, []byte("SIMPLE  =")) {
		tbl, hdr, err = measurements.ReadFITSBytes(data)
	} else {
		tbl, err = measurements.ReadDelimited(bytes.NewReader(data))
	}
	if err != nil {
		return errorResult("table parse error: " + err.Error())
	}

	curves, err := cfg.CurveSettings()
	if err != nil {
		return errorResult("config error: " + err.Error())
	}
	opts, err := cfg.SessionOptions()
	if err != nil {
		return errorResult("config error: " + err.Error())
	}
	sess, err := lcreduce.NewSession(tbl, curves, append(opts, lcreduce.WithLogger(zerolog.Nop()))...)
	if err != nil {
		return errorResult("session error: " + err.Error())
	}
	pass, err := sess.Run(context.Background())
	if err != nil {
		return errorResult("reduction error: " + err.Error())
	}
	lastPass = pass
	lastTitle = ""
	if hdr != nil {
		lastTitle = hdr.Title()
	}

	jsCurves := make([]interface{}, len(pass.Curves))
	for i, c := range pass.Curves {
		stats := map[string]interface{}{}
		for k, v := range c.Stats.Display() {
			stats[k] = v
		}
		warnings := make([]interface{}, len(c.Warnings))
		for j, w := range c.Warnings {
			warnings[j] = w
		}
		jsCurves[i] = map[string]interface{}{
			"id":       c.ID,
			"status":   c.Status.String(),
			"reason":   c.Reason,
			"x":        floats(c.X),
			"y":        floats(c.Y),
			"yErr":     floats(c.YErr),
			"hasErr":   c.HasErr,
			"modelX":   floats(c.ModelX),
			"modelY":   floats(c.ModelY),
			"residual": floats(c.Residual),
			"stats":    stats,
			"warnings": warnings,
		}
	}
	return js.ValueOf(map[string]interface{}{
		"seq":        int(pass.Seq),
		"durationMs": pass.Duration.Milliseconds(),
		"curves":     jsCurves,
	})
}

// renderCurves(options) returns the last reduction as JPEG bytes.
func renderCurves(this js.Value, args []js.Value) interface{} {
	if lastPass == nil {
		return js.Null()
	}
	opts := render.DefaultOptions()
	opts.Title = lastTitle
	if len(args) >= 1 && args[0].Type() == js.TypeObject {
		if v := args[0].Get("width"); v.Type() == js.TypeNumber {
			opts.Width = v.Int()
		}
		if v := args[0].Get("height"); v.Type() == js.TypeNumber {
			opts.Height = v.Int()
		}
		if v := args[0].Get("binWidth"); v.Type() == js.TypeNumber {
			opts.BinWidth = v.Float()
		}
	}

	jpegBytes, err := render.Bytes(lastPass, opts)
	if err != nil {
		return js.Null()
	}

	uint8Array := js.Global().Get("Uint8Array").New(len(jpegBytes))
	js.CopyBytesToJS(uint8Array, jpegBytes)
	return uint8Array
}

func floats(values []float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
