package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/goldenkey/internal/logger"
)

type fakeHeadlines struct {
	name   string
	titles []string
	err    error
	calls  int
	query  string
}

func (f *fakeHeadlines) Name() string { return f.name }

func (f *fakeHeadlines) Search(_ context.Context, query string) ([]string, error) {
	f.calls++
	f.query = query
	return f.titles, f.err
}

func newTestCollector(primary, secondary HeadlineSource) *NewsCollector {
	return NewNewsCollector(primary, secondary, DefaultNewsQueryPrefix, 3, 10, logger.Discard())
}

func TestCollectFallsBackWhenPrimaryEmpty(t *testing.T) {
	primary := &fakeHeadlines{name: "p"}
	secondary := &fakeHeadlines{name: "s", titles: []string{"A 급등", "B 신고가", "A 급등", "C 수주"}}

	got := newTestCollector(primary, secondary).Collect(context.Background(), "에이치브이엠")

	want := []string{"A 급등", "B 신고가", "C 수주"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if IsCollectionFailure(got) {
		t.Error("secondary succeeded; result must not be the failure sentinel")
	}
	if secondary.query != "특징주 에이치브이엠" {
		t.Errorf("query = %q", secondary.query)
	}
}

func TestCollectSkipsSecondaryWhenPrimarySufficient(t *testing.T) {
	primary := &fakeHeadlines{name: "p", titles: []string{"1", "2", "3"}}
	secondary := &fakeHeadlines{name: "s", titles: []string{"x"}}

	got := newTestCollector(primary, secondary).Collect(context.Background(), "삼성전자")
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times", secondary.calls)
	}
}

func TestCollectMergesPrimaryFirstWhenThin(t *testing.T) {
	primary := &fakeHeadlines{name: "p", titles: []string{"P1", "shared"}}
	secondary := &fakeHeadlines{name: "s", titles: []string{"shared", "S1"}}

	got := newTestCollector(primary, secondary).Collect(context.Background(), "x")
	want := []string{"P1", "shared", "S1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCollectRepeatedPrimaryStillFallsBack(t *testing.T) {
	primary := &fakeHeadlines{name: "p", titles: []string{"a", "a", "a"}}
	secondary := &fakeHeadlines{name: "s", titles: []string{"b", "c", "d"}}

	got := newTestCollector(primary, secondary).Collect(context.Background(), "x")
	want := []string{"a", "b", "c", "d"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if secondary.calls != 1 {
		t.Errorf("secondary calls = %d, want 1", secondary.calls)
	}
}

func TestCollectBothEmptyReturnsSentinel(t *testing.T) {
	primary := &fakeHeadlines{name: "p", err: errors.New("blocked")}
	secondary := &fakeHeadlines{name: "s"}

	got := newTestCollector(primary, secondary).Collect(context.Background(), "x")
	if !IsCollectionFailure(got) {
		t.Fatalf("got %v, want failure sentinel", got)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = %d/%d, want one per source", primary.calls, secondary.calls)
	}
}

func TestCollectCapsAtMax(t *testing.T) {
	var many []string
	for i := 0; i < 25; i++ {
		many = append(many, fmt.Sprintf("headline %d", i))
	}
	got := newTestCollector(&fakeHeadlines{name: "p", titles: many}, nil).Collect(context.Background(), "x")
	if len(got) != 10 || got[0] != "headline 0" {
		t.Fatalf("got %d headlines starting %q", len(got), got[0])
	}
}

func TestIsCollectionFailure(t *testing.T) {
	if IsCollectionFailure(nil) {
		t.Error("nil is not the sentinel")
	}
	if IsCollectionFailure([]string{HeadlineCollectionFailed, "more"}) {
		t.Error("two-element list is not the sentinel")
	}
}

func TestParseNewsTitles(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<ul>
<li><a class="news_tit" href="#" title="[특징주] 한미반도체, HBM 수주에 강세">짧은 제목</a></li>
<li><a class="news_tit" href="#">  제목 속성 없는 기사  </a></li>
</ul>`))
	if err != nil {
		t.Fatal(err)
	}
	got := parseNewsTitles(doc)
	want := []string{"[특징주] 한미반도체, HBM 수주에 강세", "제목 속성 없는 기사"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %q", got)
	}
}

func TestNaverNewsSourceSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("where") != "news" || r.URL.Query().Get("query") != "특징주 두산" {
			t.Errorf("query = %v", r.URL.Query())
		}
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		fmt.Fprint(w, `<a class="news_tit" title="두산, 원전 수주 기대">x</a>`)
	}))
	defer srv.Close()

	got, err := NewNaverNewsSource(srv.Client(), srv.URL).Search(context.Background(), "특징주 두산")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0] != "두산, 원전 수주 기대" {
		t.Fatalf("got %v", got)
	}
}

func TestGoogleNewsSourceSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("hl") != "ko" {
			t.Errorf("hl = %q", r.URL.Query().Get("hl"))
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>t</title>
<item><title>LS ELECTRIC, 변압기 수출 호조 - 한국경제</title><link>https://example.com/1</link></item>
<item><title>LS ELECTRIC 신고가 - 매일경제</title><link>https://example.com/2</link></item>
</channel></rss>`)
	}))
	defer srv.Close()

	got, err := NewGoogleNewsSource(srv.Client(), srv.URL).Search(context.Background(), "특징주 LS ELECTRIC")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"LS ELECTRIC, 변압기 수출 호조", "LS ELECTRIC 신고가"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %q", got)
	}
}

func TestCleanHTML(t *testing.T) {
	if got := cleanHTML("<b>굵은</b> 제목"); got != "굵은 제목" {
		t.Errorf("cleanHTML = %q", got)
	}
	if cleanHTML("") != "" {
		t.Error("empty input")
	}
}
