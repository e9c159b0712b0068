package universe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/encoding/traditionalchinese"

	"ETFSentinel/internal/model"
)

const isinPage = `<html><body><table class="h4">
<tr><td>有價證券代號及名稱</td><td>國際證券辨識號碼(ISIN Code)</td><td>上市日</td><td>市場別</td><td>產業別</td><td>CFICode</td><td>備註</td></tr>
<tr><td colspan="7"><b> 股票 </b></td></tr>
<tr><td>2330　台積電</td><td>TW0002330008</td><td>1994/09/05</td><td>上市</td><td>半導體業</td><td>ESVUFR</td><td></td></tr>
<tr><td colspan="7"><b> ETF </b></td></tr>
<tr><td>0050　元大台灣50</td><td>TW0000050004</td><td>2003/06/30</td><td>上市</td><td></td><td>CEOGEU</td><td></td></tr>
<tr><td>0056　元大高股息</td><td>TW0000056001</td><td>2007/12/26</td><td>上市</td><td></td><td>CEOGEU</td><td></td></tr>
<tr><td>0056　元大高股息</td><td>TW0000056001</td><td>2007/12/26</td><td>上市</td><td></td><td>CEOGEU</td><td></td></tr>
<tr><td>00679B　元大美債20年</td><td>TW00000679B0</td><td>2017/01/17</td><td>上市</td><td></td><td>CEOJLU</td><td></td></tr>
</table></body></html>`

func TestBuiltin(t *testing.T) {
	etfs := Builtin()
	if len(etfs) != 18 {
		t.Fatalf("expected 18 builtin ETFs, got %d", len(etfs))
	}
	if etfs[0].Symbol != "0056.TW" {
		t.Errorf("expected 0056.TW first, got %s", etfs[0].Symbol)
	}
	etfs[0].Symbol = "mutated"
	if Builtin()[0].Symbol != "0056.TW" {
		t.Error("Builtin must return a copy")
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 18},
		{"高股息", 2},
		{"00878", 1},
		{"nasdaq", 1},
		{"  s&p ", 1},
		{"美債", 2},
		{"nothing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := Search(Builtin(), tt.query); len(got) != tt.want {
				t.Errorf("Search(%q) = %d results, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestParseOption(t *testing.T) {
	tests := []struct {
		in   string
		want model.ETF
		ok   bool
	}{
		{"0056.TW 元大高股息", model.ETF{Symbol: "0056.TW", Name: "元大高股息"}, true},
		{"00679b", model.ETF{Symbol: "00679B.TW"}, true},
		{"  ", model.ETF{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseOption(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseOption(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseISIN(t *testing.T) {
	etfs, err := ParseISIN(strings.NewReader(isinPage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.ETF{
		{Symbol: "0050.TW", Name: "元大台灣50"},
		{Symbol: "0056.TW", Name: "元大高股息"},
		{Symbol: "00679B.TW", Name: "元大美債20年"},
	}
	if len(etfs) != len(want) {
		t.Fatalf("expected %d ETFs, got %d: %+v", len(want), len(etfs), etfs)
	}
	for i := range want {
		if etfs[i] != want[i] {
			t.Errorf("row %d: got %+v, want %+v", i, etfs[i], want[i])
		}
	}
}

func TestTWSESource_FetchDecodesBig5(t *testing.T) {
	big5, err := traditionalchinese.Big5.NewEncoder().String(isinPage)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=MS950")
		w.Write([]byte(big5))
	}))
	defer srv.Close()

	etfs, err := NewTWSESource(srv.URL, "").Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(etfs) != 3 || etfs[1].Name != "元大高股息" {
		t.Errorf("unexpected result %+v", etfs)
	}
}

type failingSource struct{}

func (failingSource) Fetch(context.Context) ([]model.ETF, error) { return nil, errors.New("down") }
func (failingSource) Name() string { return "failing" }

type fixedSource []model.ETF

func (f fixedSource) Fetch(context.Context) ([]model.ETF, error) { return f, nil }
func (fixedSource) Name() string { return "fixed" }

func TestRegistry(t *testing.T) {
	r := NewRegistry(failingSource{})
	if len(r.List()) != 18 {
		t.Fatal("expected registry seeded with builtin list")
	}
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if len(r.List()) != 18 {
		t.Error("failed refresh must keep the previous list")
	}

	e, ok := r.Lookup("0056")
	if !ok || e.Name != "元大高股息" {
		t.Errorf("Lookup(0056) = %+v, %v", e, ok)
	}
	e, ok = r.Lookup("9999")
	if ok || e.Symbol != "9999.TW" {
		t.Errorf("Lookup(9999) = %+v, %v", e, ok)
	}

	r = NewRegistry(fixedSource{{Symbol: "00900.TW", Name: "富邦特選高股息30"}})
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.List(); len(got) != 1 || got[0].Symbol != "00900.TW" {
		t.Errorf("unexpected list %+v", got)
	}
	if len(r.Search("高股息")) != 1 {
		t.Error("expected search over refreshed list")
	}
}
