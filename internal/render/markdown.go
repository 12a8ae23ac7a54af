// Package render turns message content into HTML for the web surface and into styled text for the
// terminal. Fenced code blocks get a copy control carrying their literal code.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// CodeBlock is one fenced code block found in message content.
type CodeBlock struct {
	// Language is the info string's first word, empty if the fence was untagged.
	Language string
	// Code is the literal block content without fence markers and trailing newline.
	Code string
}

const codeAttr = "data-code"

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
			highlighting.WithWrapperRenderer(codeBlockWrapper),
		),
	),
	goldmark.WithParserOptions(
		parser.WithASTTransformers(util.Prioritized(codeAttrTransformer{}, 500)),
	),
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
	),
)

// Markdown renders content as HTML. Raw HTML inside content is not passed through.
func Markdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // goldmark escapes raw html without WithUnsafe
}

// CodeBlocks returns the fenced code blocks of content in document order.
func CodeBlocks(content string) []CodeBlock {
	src := []byte(content)
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fcb.Language(src)),
			Code:     literalCode(fcb, src),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

func literalCode(n *ast.FencedCodeBlock, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\r\n")
}

// codeAttrTransformer stores each fenced block's literal code as an attribute, so the highlighting
// wrapper can hand it to the copy control.
type codeAttrTransformer struct{}

func (codeAttrTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	src := reader.Source()
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fcb, ok := n.(*ast.FencedCodeBlock); ok {
			fcb.SetAttributeString(codeAttr, []byte(literalCode(fcb, src)))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

// codeBlockWrapper renders the copy control around each fenced block. Blocks chroma could not
// highlight get the plain <pre><code> element the highlighter leaves to the wrapper.
func codeBlockWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	if !entering {
		if !ctx.Highlighted() {
			_, _ = w.WriteString("</code></pre>")
		}
		_, _ = w.WriteString("</div>\n")
		return
	}

	var code []byte
	if attrs := ctx.Attributes(); attrs != nil {
		if v, ok := attrs.GetString(codeAttr); ok {
			code, _ = v.([]byte)
		}
	}

	lang, _ := ctx.Language()

	_, _ = w.WriteString(`<div class="code-block"`)
	if len(lang) > 0 {
		_, _ = w.WriteString(` data-lang="`)
		_, _ = w.Write(util.EscapeHTML(lang))
		_ = w.WriteByte('"')
	}
	_, _ = w.WriteString(`><button type="button" class="copy-btn" aria-label="Copy code" data-code="`)
	_, _ = w.Write(util.EscapeHTML(code))
	_, _ = w.WriteString(`">Copy</button><span class="copied-indicator" hidden>Copied!</span>` + "\n")

	if ctx.Highlighted() {
		return
	}
	_, _ = w.WriteString("<pre><code")
	if len(lang) > 0 {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML(lang))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
}
