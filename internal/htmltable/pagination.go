package htmltable

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PerPage is the page size the report pages are configured with.
const PerPage = 20

var totalRecordsRegex = regexp.MustCompile(`共\s*(\d+)\s*条记录`)

type Pagination struct {
	TotalRecords int
	TotalPages   int
	CurrentPage  int
	PerPage      int
}

// ParsePagination reads the record count and active page from the pager
// rendered next to a report table. A page without a pager is a single page.
func ParsePagination(doc *goquery.Selection) Pagination {
	p := Pagination{
		TotalPages:  1,
		CurrentPage: 1,
		PerPage:     PerPage,
	}

	if m := totalRecordsRegex.FindStringSubmatch(doc.Text()); m != nil {
		p.TotalRecords, _ = strconv.Atoi(m[1])
	}
	if p.TotalRecords > 0 {
		p.TotalPages = (p.TotalRecords + p.PerPage - 1) / p.PerPage
	}

	active := doc.Find("li.ant-pagination-item-active").First()
	if active.Length() > 0 {
		n, err := strconv.Atoi(strings.TrimSpace(active.Text()))
		if err == nil && n > 0 {
			p.CurrentPage = n
		}
	}
	return p
}
