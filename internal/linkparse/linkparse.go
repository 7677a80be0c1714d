// Package linkparse resolves a tender registry number and platform name from
// a tender page URL. The platform directory is consulted first; well-known
// marketplaces have fallback patterns for when the directory is unavailable.
package linkparse

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"tenderbot/internal/types"
)

// Query keys known to carry the registry number, in lookup order.
var regNumberKeys = []string{"regNumber", "tenderid", "procedureId", "id", "lot", "purchase", "auction", "number"}

var (
	digitRun      = regexp.MustCompile(`(\d{6,})`)
	zakupkiPath   = regexp.MustCompile(`/notice/\w+/view/common-info\.html\?regNumber=(\d+)`)
	sberbankPath  = regexp.MustCompile(`/procedure-view/(\d+)`)
	roseltorgPath = regexp.MustCompile(`/procedure-cards/(\d+)`)
	torgiPath     = regexp.MustCompile(`/lot/view/(\d+)`)
	zakazrfPath   = regexp.MustCompile(`/tender/view/(\d+)`)
)

// Extract returns the registry number and platform name for a tender URL, or
// empty strings when neither can be determined.
func Extract(rawURL string, platforms []types.Platform) (regNumber, platform string) {
	if rawURL == "" {
		return "", ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		logrus.Warnf("could not parse tender url %s: %v", rawURL, err)
		return "", ""
	}
	domain := strings.ToLower(u.Host)

	if p := matchPlatform(domain, platforms); p != nil {
		reg := regNumberFromQuery(u)
		if reg == "" {
			if m := digitRun.FindStringSubmatch(rawURL); m != nil {
				reg = m[1]
			}
		}
		return reg, p.Name
	}

	// Directory did not match; fall back to hand-written marketplace patterns.
	switch {
	case strings.Contains(domain, "zakupki.gov.ru"):
		reg := u.Query().Get("regNumber")
		if reg == "" {
			if m := zakupkiPath.FindStringSubmatch(rawURL); m != nil {
				reg = m[1]
			}
		}
		return reg, "zakupki.gov.ru"
	case strings.Contains(domain, "sberbank-ast.ru"):
		if m := sberbankPath.FindStringSubmatch(rawURL); m != nil {
			return m[1], "sberbank-ast.ru"
		}
	case strings.Contains(domain, "b2b-center.ru"):
		return u.Query().Get("tenderid"), "b2b-center.ru"
	case strings.Contains(domain, "roseltorg.ru"):
		if m := roseltorgPath.FindStringSubmatch(rawURL); m != nil {
			return m[1], "roseltorg.ru"
		}
	case strings.Contains(domain, "torgi.gov.ru"):
		if m := torgiPath.FindStringSubmatch(rawURL); m != nil {
			return m[1], "torgi.gov.ru"
		}
	case strings.Contains(domain, "zakazrf.ru"):
		if m := zakazrfPath.FindStringSubmatch(rawURL); m != nil {
			return m[1], "zakazrf.ru"
		}
	}

	logrus.Warnf("could not extract reg number or platform from url %s", rawURL)
	return "", ""
}

func matchPlatform(domain string, platforms []types.Platform) *types.Platform {
	stripped := strings.TrimPrefix(domain, "www.")
	for i := range platforms {
		p := &platforms[i]
		if p.URL == "" {
			continue
		}
		if strings.Contains(domain, p.URL) {
			return p
		}
		if strings.Contains(stripped, strings.TrimPrefix(p.URL, "www.")) {
			return p
		}
	}
	return nil
}

func regNumberFromQuery(u *url.URL) string {
	qs := u.Query()
	for _, key := range regNumberKeys {
		if v := qs.Get(key); v != "" {
			return v
		}
	}
	return ""
}
