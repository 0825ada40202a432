package main

import (
	"iter"
	"testing"

	"pixdown/pkg/pixiv"
)

func countingSeq(items []*pixiv.Illust, consumed *int) iter.Seq[*pixiv.Illust] {
	return func(yield func(*pixiv.Illust) bool) {
		for _, il := range items {
			*consumed++
			if !yield(il) {
				return
			}
		}
	}
}

func streamItems(n int) []*pixiv.Illust {
	items := make([]*pixiv.Illust, n)
	for i := range items {
		items[i] = &pixiv.Illust{
			ID:             uint64(i + 1),
			TotalBookmarks: 1000 * (n - i),
			TotalView:      100000,
			Visible:        true,
		}
	}
	return items
}

func TestCollectStopsAtLimit(t *testing.T) {
	prev := quiet
	quiet = true
	defer func() { quiet = prev }()

	consumed := 0
	got := collect(countingSeq(streamItems(5), &consumed), 2, true)

	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("Expected the first two items, got %d items", len(got))
	}
	if consumed != 2 {
		t.Errorf("Expected the stream abandoned at the limit, consumed %d", consumed)
	}
}

func TestCollectHeapModeDrainsWholeStream(t *testing.T) {
	prev := quiet
	quiet = true
	defer func() { quiet = prev }()

	consumed := 0
	got := collect(countingSeq(streamItems(5), &consumed), 2, false)

	if consumed != 5 {
		t.Errorf("Expected every candidate considered, consumed %d", consumed)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("Expected the two best items, got %d items", len(got))
	}
}
