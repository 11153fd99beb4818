package layout

import (
	"fmt"
	"sort"

	"github.com/ByLCY/scriptorium/scripture"
)

// IndexEntry 记录某一经文引用首次被放置的页码。
type IndexEntry struct {
	Page int                 `json:"page"`
	Ref  scripture.Reference `json:"ref"`
}

// Index 是按文档顺序排列的引用→页码映射。文档顺序同时也是页码非递减顺序。
// 按引用查找时使用另一个按 (书卷出现顺序, 章, 节) 排序的置换数组。
type Index struct {
	entries []IndexEntry
	books   []string
	ordinal map[string]int
	sorted  []int
}

// NewIndex 以文档顺序的条目构建索引。
func NewIndex(entries []IndexEntry) *Index {
	x := &Index{
		entries: entries,
		ordinal: map[string]int{},
	}
	for _, e := range entries {
		if _, ok := x.ordinal[e.Ref.Book]; !ok {
			x.ordinal[e.Ref.Book] = len(x.books)
			x.books = append(x.books, e.Ref.Book)
		}
	}
	x.sorted = make([]int, len(entries))
	for i := range x.sorted {
		x.sorted[i] = i
	}
	sort.SliceStable(x.sorted, func(a, b int) bool {
		return x.compare(x.entries[x.sorted[a]].Ref, x.entries[x.sorted[b]].Ref) < 0
	})
	return x
}

func (x *Index) bookOrdinal(book string) int {
	if n, ok := x.ordinal[book]; ok {
		return n
	}
	return -1
}

func (x *Index) compare(a, b scripture.Reference) int {
	return a.CompareIn(b, x.bookOrdinal)
}

// Len 返回条目数。nil 索引的所有方法都视为空索引。
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Entries 返回文档顺序的全部条目。
func (x *Index) Entries() []IndexEntry {
	if x == nil {
		return nil
	}
	return x.entries
}

// Books 按首次出现顺序返回书卷代码。
func (x *Index) Books() []string {
	if x == nil {
		return nil
	}
	return x.books
}

// Sorted 返回按引用排序的条目下标。
func (x *Index) Sorted() []int {
	if x == nil {
		return nil
	}
	return x.sorted
}

// At 返回第 i 个条目。
func (x *Index) At(i int) (IndexEntry, error) {
	if i < 0 || i >= x.Len() {
		return IndexEntry{}, fmt.Errorf("%w: %d (共 %d 条)", ErrIndexOutOfRange, i, x.Len())
	}
	return x.entries[i], nil
}

// OnPage 返回放置在第 page 页的条目，用于确定页面对应的经文。
func (x *Index) OnPage(page int) []IndexEntry {
	if x == nil {
		return nil
	}
	lo := sort.Search(len(x.entries), func(i int) bool { return x.entries[i].Page >= page })
	hi := sort.Search(len(x.entries), func(i int) bool { return x.entries[i].Page > page })
	return x.entries[lo:hi]
}

// Covering 返回截至第 page 页末尾最近的条目，页面本身没有经节起点时用于确定其所属经文。
func (x *Index) Covering(page int) (IndexEntry, bool) {
	if x == nil {
		return IndexEntry{}, false
	}
	i := sort.Search(len(x.entries), func(i int) bool { return x.entries[i].Page > page })
	if i == 0 {
		return IndexEntry{}, false
	}
	return x.entries[i-1], true
}

// Find 返回同一书卷内不大于 ref 的最后一个条目的位置。
// 因此 "GEN 2" 命中第 2 章的章条目，"PSA 23:2" 可命中编号为 "1-2" 的经节。
func (x *Index) Find(ref scripture.Reference) (int, bool) {
	if x == nil {
		return 0, false
	}
	if _, ok := x.ordinal[ref.Book]; !ok {
		return 0, false
	}
	i := sort.Search(len(x.sorted), func(i int) bool {
		return x.compare(x.entries[x.sorted[i]].Ref, ref) > 0
	})
	if i == 0 {
		return 0, false
	}
	i--
	found := x.entries[x.sorted[i]].Ref
	if found.Book != ref.Book {
		return 0, false
	}
	for i > 0 && x.entries[x.sorted[i-1]].Ref == found {
		i--
	}
	return x.sorted[i], true
}

// PageOf 返回 ref 所在页码。
func (x *Index) PageOf(ref scripture.Reference) (int, bool) {
	pos, ok := x.Find(ref)
	if !ok {
		return 0, false
	}
	return x.entries[pos].Page, true
}
