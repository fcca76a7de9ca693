package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// historyCardSelector matches one ownership entry on a copy's history page.
const historyCardSelector = "div.card.rounded-0.my-2.shadow.border-0"

var playerHrefPattern = regexp.MustCompile(`^/player/(\d+)/?$`)

// PastOwners returns the user IDs referenced by the history cards of a
// copy's history page, in document order (most recent owner first), with
// duplicates removed keeping the first occurrence.
func PastOwners(html string) ([]int64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[int64]struct{})
	owners := make([]int64, 0)

	doc.Find(historyCardSelector).Each(func(_ int, card *goquery.Selection) {
		card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			m := playerHrefPattern.FindStringSubmatch(href)
			if m == nil {
				return true
			}
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return true
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				owners = append(owners, id)
			}
			return false
		})
	})

	return owners, nil
}
