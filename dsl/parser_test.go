package dsl_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ByLCY/memeforge/dsl"
	"github.com/ByLCY/memeforge/export"
	"github.com/ByLCY/memeforge/layout"
)

const sampleDSL = `
// 周一的配方
meme "monday" {
  image: "photos/cat.jpg"
  size: 600x400
  dpr: 2x
  top: "when it's ${user.name}'s\nturn"
  top-y: 12%
  bottom: "deploy ${day|friday}"
  bottom-y: 88
  font-size: 8%
  output: "out/monday.gif"
  delay: 500ms
  frame { top: "one" }
  frame { top: "two"; delay: 1s }
}

/* 第二个 */
meme "drake" {
  template: drake-hotline-bling
  top: "writing code"
  bottom: "writing recipes"
}
`

func TestParseFile(t *testing.T) {
	file, err := dsl.ParseString(sampleDSL)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(file.Memes) != 2 {
		t.Fatalf("expected 2 memes, got %d", len(file.Memes))
	}
	monday := file.Memes[0]
	if string(monday.Name) != "monday" {
		t.Fatalf("expected name monday, got %s", monday.Name)
	}
	stmts := monday.Block.Statements
	if len(stmts) != 12 {
		t.Fatalf("expected 12 statements, got %d", len(stmts))
	}
	if stmts[0].Kind() != "assignment" || stmts[0].Assignment.Key != "image" {
		t.Fatalf("unexpected first statement: %+v", stmts[0])
	}
	if got := stmts[1].Assignment.Value; got.Size == nil || *got.Size != "600x400" {
		t.Fatalf("size should lex as Size token, got %+v", got)
	}
	if got := stmts[2].Assignment.Value; got.Number == nil || *got.Number != "2x" {
		t.Fatalf("dpr should lex as Number, got %+v", got)
	}
	if got := stmts[3].Assignment.Value.Text(); !strings.Contains(got, "\n") {
		t.Fatalf("escape sequences should be unquoted, got %q", got)
	}
	if stmts[11].Kind() != "frame" || len(stmts[11].Frame.Block.Statements) != 2 {
		t.Fatalf("expected inline frame with 2 statements, got %+v", stmts[11])
	}
	tpl := file.Memes[1].Block.Statements[0].Assignment
	if tpl.Value.Ident == nil || *tpl.Value.Ident != "drake-hotline-bling" {
		t.Fatalf("template id should lex as Ident, got %+v", tpl.Value)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		`meme monday { }`,
		`meme "a" { top "x" }`,
		`meme "a" { top: }`,
		`meme "a" {`,
	}
	for _, src := range bad {
		if _, err := dsl.ParseString(src); err == nil {
			t.Fatalf("expected parse error for %q", src)
		}
	}
	file, err := dsl.ParseString("\n\n// nothing\n")
	if err != nil || len(file.Memes) != 0 {
		t.Fatalf("empty file should parse to no memes: %v", err)
	}
}

func TestCompile(t *testing.T) {
	recipes, err := dsl.CompileString(sampleDSL, map[string]any{"user": map[string]any{"name": "Bob"}})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(recipes) != 2 {
		t.Fatalf("expected 2 recipes, got %d", len(recipes))
	}

	m := recipes[0]
	if m.Image != "photos/cat.jpg" || m.Template != "" {
		t.Fatalf("unexpected source: %+v", m)
	}
	if m.Size != (layout.Size{Width: 600, Height: 400}) || m.DPR != 2 {
		t.Fatalf("unexpected size/dpr: %+v %g", m.Size, m.DPR)
	}
	if m.Format != export.FormatGIF || !m.Animated() {
		t.Fatalf("expected gif output, got %s", m.Format)
	}
	if len(m.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(m.Frames))
	}
	f0, f1 := m.Frames[0], m.Frames[1]
	if f0.Params.TopText != "one" || f1.Params.TopText != "two" {
		t.Fatalf("frame overrides not applied: %q %q", f0.Params.TopText, f1.Params.TopText)
	}
	if f0.Params.BottomText != "deploy friday" {
		t.Fatalf("frames should inherit meme captions, got %q", f0.Params.BottomText)
	}
	if f0.Params.TopTextY != 12 || f0.Params.BottomTextY != 88 || f0.Params.FontSizePercent != 8 {
		t.Fatalf("unexpected percentages: %+v", f0.Params)
	}
	if f0.Delay != 500*time.Millisecond || f1.Delay != time.Second {
		t.Fatalf("unexpected delays: %s %s", f0.Delay, f1.Delay)
	}

	d := recipes[1]
	if d.Template != "drake-hotline-bling" || d.Format != export.FormatPNG || d.Output != "drake.png" {
		t.Fatalf("unexpected drake recipe: %+v", d)
	}
	if len(d.Frames) != 1 || d.Frames[0].Params.TopTextY != 10 || d.Frames[0].Delay != export.DefaultFrameDelay {
		t.Fatalf("single-frame recipe should use defaults: %+v", d.Frames)
	}
	if d.Size != (layout.Size{}) || d.DPR != 0 {
		t.Fatalf("unset size should stay zero: %+v", d.Size)
	}
	d = d.ApplyDefaults(layout.Size{Width: 500, Height: 500}, 1)
	if d.Size.Width != 500 || d.DPR != 1 {
		t.Fatalf("ApplyDefaults failed: %+v", d)
	}
}

func TestCompileInterpolationKeepsUnknownPlaceholders(t *testing.T) {
	recipes, err := dsl.CompileString(sampleDSL, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if got := recipes[0].Frames[0].Params.TopText; got != "one" {
		t.Fatalf("got %q", got)
	}
	single, err := dsl.CompileString(`meme "x" { image: "a.png"; top: "hi ${who}" }`, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if got := single[0].Frames[0].Params.TopText; got != "hi ${who}" {
		t.Fatalf("unresolved placeholder should be kept, got %q", got)
	}
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]string{
		"missing source":   `meme "a" { top: "x" }`,
		"both sources":     `meme "a" { image: "a.png"; template: two-buttons }`,
		"unknown key":      `meme "a" { image: "a.png"; colour: red }`,
		"duplicate key":    `meme "a" { image: "a.png"; top: "x"; top: "y" }`,
		"duplicate name":   `meme "a" { image: "a.png" } meme "a" { image: "b.png" }`,
		"bad size":         `meme "a" { image: "a.png"; size: 600 }`,
		"bad percent":      `meme "a" { image: "a.png"; top-y: 10x }`,
		"out of range":     `meme "a" { image: "a.png"; font-size: 30% }`,
		"frame bad key":    `meme "a" { image: "a.png"; frame { image: "b.png" } }`,
		"frames not gif":   `meme "a" { image: "a.png"; output: "a.png"; frame { top: "1" } frame { top: "2" } }`,
		"bad format":       `meme "a" { image: "a.png"; format: bmp }`,
		"output no ext":    `meme "a" { image: "a.png"; output: "a" }`,
		"nested frame":     `meme "a" { image: "a.png"; frame { frame { top: "x" } } }`,
		"empty name":       `meme "" { image: "a.png" }`,
		"dpr not positive": `meme "a" { image: "a.png"; dpr: 0 }`,
	}
	for name, src := range cases {
		_, err := dsl.CompileString(src, nil)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err := dsl.CompileString("meme \"a\" {\n  image: \"a.png\"\n  bogus: 1\n}", nil)
	var ce *dsl.CompileError
	if !errors.As(err, &ce) || ce.Pos.Line != 3 {
		t.Fatalf("expected CompileError on line 3, got %v", err)
	}
}

func TestCompileFrameErrorPositions(t *testing.T) {
	file, err := dsl.ParseString("meme \"a\" {\n  image: \"a.png\"\n  frame {\n    frame { top: \"x\" }\n  }\n}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	outer := file.Memes[0].Block.Statements[1].Frame
	if outer == nil || outer.Pos.Line != 3 {
		t.Fatalf("expected frame block on line 3, got %+v", outer)
	}
	if inner := outer.Block.Statements[0].Frame; inner == nil || inner.Pos.Line != 4 {
		t.Fatalf("expected nested frame block on line 4, got %+v", inner)
	}

	_, err = dsl.Compile(file, nil)
	var ce *dsl.CompileError
	if !errors.As(err, &ce) || ce.Pos.Line != 4 {
		t.Fatalf("nested frame should be reported on line 4, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	if got := dsl.Resolve("/recipes", "cat.jpg"); got != "/recipes/cat.jpg" {
		t.Fatalf("got %s", got)
	}
	if got := dsl.Resolve("/recipes", "https://x/cat.jpg"); got != "https://x/cat.jpg" {
		t.Fatalf("got %s", got)
	}
	if got := dsl.Resolve("/recipes", "/abs/cat.jpg"); got != "/abs/cat.jpg" {
		t.Fatalf("got %s", got)
	}
}
