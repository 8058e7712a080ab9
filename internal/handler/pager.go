package handler

import (
	"net/url"
	"strconv"

	"github.com/hitoshi/storefront/internal/catalog"
)

// PageLink はページャーの1リンク。
type PageLink struct {
	Number  int
	URL     string
	Current bool
}

// Pager はページャーの描画用データ。
type Pager struct {
	Range   catalog.PageRange
	Links   []PageLink
	PrevURL string
	NextURL string
}

// newPager は現在の絞り込み条件を保ったままページ番号だけを差し替えたリンクを作る。
func newPager[T any](state catalog.PageState[T], path string, query url.Values) Pager {
	link := func(page int) string {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("page", strconv.Itoa(page))
		return path + "?" + q.Encode()
	}

	current := state.Page
	pages := state.Pages()
	p := Pager{Range: state.Range}
	for _, n := range pages {
		p.Links = append(p.Links, PageLink{Number: n, URL: link(n), Current: n == current})
	}
	if current > 1 {
		p.PrevURL = link(current - 1)
	}
	if current < len(pages) {
		p.NextURL = link(current + 1)
	}
	return p
}

// pageParam はクエリのpageを返す。省略時や数値でない場合は1。
func pageParam(query url.Values) int {
	n, err := strconv.Atoi(query.Get("page"))
	if err != nil {
		return 1
	}
	return n
}
