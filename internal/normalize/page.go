package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/youthpolicy/policyrag/internal/htmlutil"
	"github.com/youthpolicy/policyrag/internal/model"
)

// ParsePage reads a policy detail page into a section tree.
//
// Every table.form-table becomes a section titled by the <strong> element
// right before it. Each row pairs its i-th <th> with its i-th <td>.
func ParsePage(htmlContent, policyID, pageURL string) (model.SourcePage, error) {
	page := model.SourcePage{
		PolicyID: policyID,
		PageURL:  pageURL,
		Sections: []model.Section{},
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return page, fmt.Errorf("parse html: %w", err)
	}

	if detail := htmlutil.FindFirst(doc, func(n *html.Node) bool { return htmlutil.HasClass(n, "policy-detail") }); detail != nil {
		if title := htmlutil.FindFirst(detail, func(n *html.Node) bool { return n != detail && htmlutil.HasClass(n, "title") }); title != nil {
			page.Title = strings.TrimSpace(htmlutil.Text(title))
		}
	}

	tables := htmlutil.FindAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Table && htmlutil.HasClass(n, "form-table")
	})
	for _, table := range tables {
		section := model.Section{Title: sectionTitle(table)}

		for _, tr := range htmlutil.FindAll(table, htmlutil.IsElement(atom.Tr)) {
			ths := htmlutil.FindAll(tr, htmlutil.IsElement(atom.Th))
			tds := htmlutil.FindAll(tr, htmlutil.IsElement(atom.Td))
			for i, th := range ths {
				if i >= len(tds) {
					break
				}
				section.Rows = append(section.Rows, model.Row{
					Label: strings.TrimSpace(htmlutil.Text(th)),
					Value: cellOf(tds[i]),
				})
			}
		}
		page.Sections = append(page.Sections, section)
	}

	return page, nil
}

// sectionTitle returns the text of the previous sibling element if it is <strong>
func sectionTitle(table *html.Node) string {
	for s := table.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type != html.ElementNode {
			continue
		}
		if s.DataAtom == atom.Strong {
			return strings.TrimSpace(htmlutil.Text(s))
		}
		return ""
	}
	return ""
}

func cellOf(td *html.Node) model.Cell {
	cell := model.Cell{Text: strings.TrimSpace(htmlutil.Text(td))}
	if a := htmlutil.FindFirst(td, htmlutil.IsElement(atom.A)); a != nil {
		cell.Href = htmlutil.Attr(a, "href")
	}
	return cell
}
