package compose

import (
	"bytes"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to HTML with a highlighting stylesheet inlined
// in front of the body. It is safe for concurrent use.
type Renderer struct {
	markdown goldmark.Markdown
	css      string
}

// styleAliases maps Pygments style names onto their chroma registrations.
var styleAliases = map[string]string{
	"default": "pygments",
}

// NewRenderer prepares a renderer for the named chroma style, e.g. "pygments".
// The Pygments name "default" is accepted as an alias.
func NewRenderer(style string) (*Renderer, error) {
	name := strings.ToLower(strings.TrimSpace(style))
	if alias, ok := styleAliases[name]; ok {
		name = alias
	}
	chromaStyle, ok := styles.Registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}

	formatOptions := []chromahtml.Option{chromahtml.WithClasses(true)}

	var css bytes.Buffer
	if err := chromahtml.New(formatOptions...).WriteCSS(&css, chromaStyle); err != nil {
		return nil, fmt.Errorf("%w: write %s stylesheet: %v", ErrRender, name, err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Footnote,
			extension.DefinitionList,
			extension.Strikethrough,
			highlighting.NewHighlighting(
				highlighting.WithStyle(name),
				highlighting.WithFormatOptions(formatOptions...),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	return &Renderer{markdown: md, css: css.String()}, nil
}

// CSS returns the stylesheet inlined into every rendered document.
func (r *Renderer) CSS() string {
	return r.css
}

// Render converts source to HTML prefixed with a <style> block.
func (r *Renderer) Render(source string) (string, error) {
	var body bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	return `<style type="text/css">` + r.css + `</style>` + body.String(), nil
}
