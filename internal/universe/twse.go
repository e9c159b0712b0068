package universe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"ETFSentinel/internal/model"
)

// DefaultISINURL lists every TWSE-listed security.
const DefaultISINURL = "https://isin.twse.com.tw/isin/C_public.jsp?strMode=2"

// etfCFIPrefix marks collective investment vehicles (ETFs) in the CFI column.
const etfCFIPrefix = "CE"

// Source provides the scan universe.
type Source interface {
	Fetch(ctx context.Context) ([]model.ETF, error)
	Name() string
}

// BuiltinSource serves the curated list.
type BuiltinSource struct{}

func (BuiltinSource) Fetch(context.Context) ([]model.ETF, error) { return Builtin(), nil }

func (BuiltinSource) Name() string { return "builtin" }

// TWSESource scrapes the exchange ISIN listing for every listed ETF.
type TWSESource struct {
	URL    string
	Client *http.Client
}

// NewTWSESource creates a scraper with optional proxy support.
func NewTWSESource(isinURL, proxyURL string) *TWSESource {
	if isinURL == "" {
		isinURL = DefaultISINURL
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TWSESource{
		URL: isinURL,
		Client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}

func (s *TWSESource) Name() string { return "twse" }

// Fetch downloads the Big5 listing page and extracts the ETF rows.
func (s *TWSESource) Fetch(ctx context.Context) ([]model.ETF, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twse fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twse: status %d", resp.StatusCode)
	}

	etfs, err := ParseISIN(transform.NewReader(resp.Body, traditionalchinese.Big5.NewDecoder()))
	if err != nil {
		return nil, err
	}
	if len(etfs) == 0 {
		return nil, fmt.Errorf("twse: no ETF rows found")
	}
	return etfs, nil
}

// ParseISIN reads a decoded (UTF-8) ISIN listing table. Each data row's first cell
// is "code　name" separated by an ideographic space; the sixth cell is the CFI code.
func ParseISIN(r io.Reader) ([]model.ETF, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse isin html: %w", err)
	}

	seen := make(map[string]bool)
	var out []model.ETF
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}
		cfi := strings.TrimSpace(cells.Eq(5).Text())
		if !strings.HasPrefix(cfi, etfCFIPrefix) {
			return
		}
		code, name, ok := strings.Cut(strings.TrimSpace(cells.Eq(0).Text()), "　")
		if !ok {
			return
		}
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		out = append(out, model.ETF{Symbol: NormalizeSymbol(code), Name: strings.TrimSpace(name)})
	})
	return out, nil
}
