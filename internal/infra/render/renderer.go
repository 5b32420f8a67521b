package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/resources"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type Renderer struct {
	resources resources.Provider
	markdown  goldmark.Markdown
}

func New(provider resources.Provider) *Renderer {
	return &Renderer{
		resources: provider,
		markdown:  goldmark.New(),
	}
}

// Render validates spec against the required-field table, fills the kind's
// template and parses the result into a Layout.
func (r *Renderer) Render(ctx context.Context, spec domain.DocumentSpec) (Layout, error) {
	if err := ctx.Err(); err != nil {
		return Layout{}, err
	}
	required, ok := RequiredFields[spec.Kind]
	if !ok {
		return Layout{}, domain.RenderFailure(fmt.Errorf("unsupported document kind %q", spec.Kind))
	}
	for _, field := range required {
		if strings.TrimSpace(spec.RenderContext[field]) == "" {
			return Layout{}, domain.MissingField(field)
		}
	}

	source, err := r.resources.Open(resources.TemplateName(spec.Kind))
	if err != nil {
		return Layout{}, domain.RenderFailure(err)
	}
	tmpl, err := template.New(string(spec.Kind)).
		Option("missingkey=error").
		Funcs(template.FuncMap{"opt": optional}).
		Parse(string(source))
	if err != nil {
		return Layout{}, domain.RenderFailure(err)
	}
	var filled bytes.Buffer
	if err := tmpl.Execute(&filled, escapeContext(spec.RenderContext)); err != nil {
		return Layout{}, domain.RenderFailure(err)
	}

	src := filled.Bytes()
	doc := r.markdown.Parser().Parse(text.NewReader(src))
	layout := Layout{Kind: spec.Kind, SubjectID: spec.SubjectID}
	collectLayout(doc, src, &layout)
	if layout.Title == "" {
		return Layout{}, domain.RenderFailure(fmt.Errorf("template %s has no title heading", spec.Kind))
	}
	return layout, nil
}

func optional(values map[string]string, key string, def ...string) string {
	if v := strings.TrimSpace(values[key]); v != "" {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

// escapeContext neutralises inline markup in caller-supplied values so a
// value can never introduce structure into the document.
func escapeContext(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = escapeMarkdown(v)
	}
	return out
}

func escapeMarkdown(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch r {
		case '\r', '\n', '\t':
			b.WriteByte(' ')
		case '\\', '`', '*', '_', '[', ']', '<', '>', '!', '&', '~', '|', '#':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collectLayout(doc ast.Node, src []byte, layout *Layout) {
	var current *Section
	add := func(blocks ...Block) {
		if current == nil {
			layout.Preamble = append(layout.Preamble, blocks...)
			return
		}
		current.Blocks = append(current.Blocks, blocks...)
	}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := inlineText(node, src)
			if node.Level == 1 && layout.Title == "" {
				layout.Title = title
				continue
			}
			layout.Sections = append(layout.Sections, Section{Title: title})
			current = &layout.Sections[len(layout.Sections)-1]
		case *ast.Paragraph, *ast.TextBlock:
			if block, ok := paragraphBlock(node, src); ok {
				add(block)
			}
		case *ast.List:
			add(listBlocks(node, src)...)
		case *ast.Blockquote:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if block, ok := paragraphBlock(c, src); ok {
					add(block)
				}
			}
		}
	}
}

func listBlocks(list *ast.List, src []byte) []Block {
	var out []Block
	index := list.Start
	if index == 0 {
		index = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "-"
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d.", index)
			index++
		}
		var label string
		var parts []string
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			block, ok := paragraphBlock(c, src)
			if !ok {
				continue
			}
			if label == "" && len(parts) == 0 {
				label = block.Label
			} else if block.Label != "" {
				parts = append(parts, block.Label)
			}
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		if label == "" && len(parts) == 0 {
			continue
		}
		out = append(out, Block{
			Kind:   BlockListItem,
			Marker: marker,
			Label:  label,
			Text:   strings.Join(parts, " "),
		})
	}
	return out
}

func paragraphBlock(n ast.Node, src []byte) (Block, bool) {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
	default:
		return Block{}, false
	}
	var label string
	first := n.FirstChild()
	if emph, ok := first.(*ast.Emphasis); ok && emph.Level == 2 {
		label = inlineText(emph, src)
		first = emph.NextSibling()
	}
	var b strings.Builder
	for c := first; c != nil; c = c.NextSibling() {
		writeInline(c, src, &b)
	}
	body := collapseSpaces(b.String())
	if label == "" && body == "" {
		return Block{}, false
	}
	return Block{Kind: BlockParagraph, Label: label, Text: body}, true
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeInline(c, src, &b)
	}
	return collapseSpaces(b.String())
}

func writeInline(n ast.Node, src []byte, b *strings.Builder) {
	switch node := n.(type) {
	case *ast.Text:
		b.Write(util.UnescapePunctuations(node.Segment.Value(src)))
		if node.SoftLineBreak() || node.HardLineBreak() {
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(node.Value)
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			writeInline(c, src, b)
		}
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
