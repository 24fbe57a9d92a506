package report

import (
	"github.com/jedib0t/go-pretty/v6/list"

	"oracletom/internal/taxonomy"
)

// RenderTaxonomy draws the class tree.
func RenderTaxonomy(tax *taxonomy.Taxonomy) string {
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)
	lw.AppendItem(tax.Root())
	appendChildren(lw, tax, tax.Root())
	return lw.Render()
}

func appendChildren(lw list.Writer, tax *taxonomy.Taxonomy, parent string) {
	children := tax.Children(parent)
	if len(children) == 0 {
		return
	}
	lw.Indent()
	for _, child := range children {
		lw.AppendItem(child)
		appendChildren(lw, tax, child)
	}
	lw.UnIndent()
}
