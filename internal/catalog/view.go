package catalog

import (
	"slices"
	"sync"
)

// View は取得済みの一覧に対するフィルタとページングの状態を保持する。
// 一覧またはフィルタが実際に変わった場合のみページを1に戻す。
type View[T comparable, F comparable] struct {
	match    func(filter F, item T) bool
	pageSize int

	mu       sync.Mutex
	source   []T
	filter   F
	filtered []T
	page     int
}

// PageRange は「a–b件目 / 全n件」の表示用情報。該当なしの場合はすべて0。
type PageRange struct {
	Start int
	End   int
	Total int
}

// PageState はApplyが1回のロックで切り出した表示状態。
type PageState[T any] struct {
	Items     []T
	Page      int
	PageCount int
	Range     PageRange
}

// Pages はページ番号の一覧を返す。
func (s PageState[T]) Pages() []int {
	pages := make([]int, s.PageCount)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// NewView は新しいViewを生成する。matchは要素がフィルタ条件を満たすかを判定する。
// pageSizeが1未満の場合は1として扱う。
func NewView[T comparable, F comparable](pageSize int, match func(filter F, item T) bool) *View[T, F] {
	if pageSize < 1 {
		pageSize = 1
	}
	return &View[T, F]{
		match:    match,
		pageSize: pageSize,
		page:     1,
	}
}

// SetSource は取得済みの一覧を置き換える。内容が変わった場合はページを1に戻し、変わったかを返す。
func (v *View[T, F]) SetSource(items []T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setSource(items)
}

func (v *View[T, F]) setSource(items []T) bool {
	if slices.Equal(v.source, items) && v.source != nil {
		return false
	}
	v.source = slices.Clone(items)
	if v.source == nil {
		v.source = []T{}
	}
	v.refilter()
	return true
}

// SetFilter はフィルタを置き換える。値が変わった場合はページを1に戻し、変わったかを返す。
func (v *View[T, F]) SetFilter(filter F) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setFilter(filter)
}

func (v *View[T, F]) setFilter(filter F) bool {
	if filter == v.filter {
		return false
	}
	v.filter = filter
	v.refilter()
	return true
}

// Apply は一覧とフィルタの反映、ページ移動、表示状態の切り出しを1回のロックで行う。
// 一覧かフィルタが変わった場合はページを1に戻してからpageへ移動する。
// pageが範囲外の場合は移動しない。
func (v *View[T, F]) Apply(items []T, filter F, page int) PageState[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setSource(items)
	v.setFilter(filter)
	v.goTo(page)
	return PageState[T]{
		Items:     v.displayed(),
		Page:      v.page,
		PageCount: v.pageCount(),
		Range:     v.pageRange(),
	}
}

func (v *View[T, F]) refilter() {
	filtered := make([]T, 0, len(v.source))
	for _, it := range v.source {
		if v.match(v.filter, it) {
			filtered = append(filtered, it)
		}
	}
	v.filtered = filtered
	v.page = 1
}

// Filter は現在のフィルタを返す。
func (v *View[T, F]) Filter() F {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Len はフィルタ後の件数を返す。
func (v *View[T, F]) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.filtered)
}

// PageSize は1ページあたりの件数を返す。
func (v *View[T, F]) PageSize() int {
	return v.pageSize
}

// Page は現在のページ番号（1始まり）を返す。
func (v *View[T, F]) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// PageCount は総ページ数 ceil(n/pageSize) を返す。
func (v *View[T, F]) PageCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pageCount()
}

func (v *View[T, F]) pageCount() int {
	return (len(v.filtered) + v.pageSize - 1) / v.pageSize
}

// Displayed は現在のページに表示する要素を返す。
func (v *View[T, F]) Displayed() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.displayed()
}

func (v *View[T, F]) displayed() []T {
	start := (v.page - 1) * v.pageSize
	if start >= len(v.filtered) {
		return []T{}
	}
	end := min(start+v.pageSize, len(v.filtered))
	return slices.Clone(v.filtered[start:end])
}

// GoTo は指定ページへ移動する。[1, PageCount] の範囲外の場合は何もせずfalseを返す。
func (v *View[T, F]) GoTo(page int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.goTo(page)
}

func (v *View[T, F]) goTo(page int) bool {
	if page < 1 || page > v.pageCount() {
		return false
	}
	v.page = page
	return true
}

// Next は次のページへ移動する。
func (v *View[T, F]) Next() bool {
	return v.GoTo(v.Page() + 1)
}

// Prev は前のページへ移動する。
func (v *View[T, F]) Prev() bool {
	return v.GoTo(v.Page() - 1)
}

// Range は現在のページの表示範囲を返す。
func (v *View[T, F]) Range() PageRange {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pageRange()
}

func (v *View[T, F]) pageRange() PageRange {
	n := len(v.filtered)
	start := (v.page - 1) * v.pageSize
	if n == 0 || start >= n {
		return PageRange{Total: n}
	}
	return PageRange{
		Start: start + 1,
		End:   min(start+v.pageSize, n),
		Total: n,
	}
}

// Pages はページ番号の一覧を返す。ページャーの描画に使う。
func (v *View[T, F]) Pages() []int {
	count := v.PageCount()
	pages := make([]int, count)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
