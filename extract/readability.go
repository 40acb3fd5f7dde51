package extract

import (
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// readabilityParagraphs runs the readability algorithm over rawHTML and
// returns the text of each paragraph in the main content.
func readabilityParagraphs(rawHTML, pageURL string) ([]string, error) {
	u, err := nurl.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, err
	}
	var paras []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		paras = append(paras, strings.TrimSpace(s.Text()))
	})
	return paras, nil
}
