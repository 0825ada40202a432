package pixiv

import (
	"encoding/json"
	"testing"
	"time"
)

func TestQuality(t *testing.T) {
	tests := []struct {
		name      string
		bookmarks int
		views     int
		visible   bool
		expected  float64
	}{
		{"ten percent", 100, 1000, true, 10.0},
		{"rounded to two decimals", 333, 10000, true, 3.33},
		{"rounds half up", 125, 100000, true, 0.13},
		{"zero views", 100, 0, true, QualityNotApplicable},
		{"invisible", 100, 1000, false, QualityNotApplicable},
		{"zero bookmarks", 0, 1000, true, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			il := &Illust{
				TotalBookmarks: test.bookmarks,
				TotalView:      test.views,
				Visible:        test.visible,
			}
			if got := il.Quality(); got != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestQualitySentinelSortsBelowEverything(t *testing.T) {
	broken := &Illust{TotalBookmarks: 100, TotalView: 0, Visible: true}
	worst := &Illust{TotalBookmarks: 100, TotalView: 1000000, Visible: true}

	if !broken.Less(worst) {
		t.Error("The quality sentinel must sort below any computable quality")
	}
}

func TestLessOrdersByBookmarksThenQuality(t *testing.T) {
	a := &Illust{TotalBookmarks: 1000, TotalView: 10000, Visible: true}
	b := &Illust{TotalBookmarks: 2000, TotalView: 100000, Visible: true}
	if !a.Less(b) {
		t.Error("Fewer bookmarks must order lower regardless of quality")
	}

	c := &Illust{TotalBookmarks: 1000, TotalView: 100000, Visible: true}
	if !c.Less(a) {
		t.Error("Equal bookmarks must fall back to quality")
	}
	if a.Less(c) {
		t.Error("Ordering must be asymmetric")
	}
}

func TestCreatedDate(t *testing.T) {
	il := &Illust{CreateDate: "2020-05-01T12:34:56+09:00"}
	d, err := il.CreatedDate()
	if err != nil {
		t.Fatal(err)
	}
	if d.Format("2006-01-02") != "2020-05-01" {
		t.Errorf("Expected 2020-05-01, got %s", d.Format("2006-01-02"))
	}

	// An early-morning timestamp must keep its wall-clock date; the +09:00
	// offset would pull it into the previous UTC day.
	il = &Illust{CreateDate: "2020-04-10T08:00:00+09:00"}
	d, err = il.CreatedDate()
	if err != nil {
		t.Fatal(err)
	}
	if d.Format("2006-01-02") != "2020-04-10" {
		t.Errorf("Expected 2020-04-10, got %s", d.Format("2006-01-02"))
	}

	il = &Illust{CreateDate: "2020-05-01"}
	d, err = il.CreatedDate()
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected bare date fallback, got %v", d)
	}

	il = &Illust{CreateDate: "not a date"}
	if _, err := il.CreatedDate(); err == nil {
		t.Error("Expected an error for garbage input")
	}
}

func TestDecodeIllust(t *testing.T) {
	data := []byte(`{
		"id": 59580629,
		"title": "example",
		"type": "illust",
		"user": {"id": 660788, "name": "someone"},
		"create_date": "2016-10-31T00:00:01+09:00",
		"page_count": 1,
		"total_view": 100000,
		"total_bookmarks": 12000,
		"visible": true
	}`)

	il, err := DecodeIllust(data)
	if err != nil {
		t.Fatal(err)
	}
	if il.ID != 59580629 {
		t.Errorf("Expected id 59580629, got %d", il.ID)
	}
	if il.User.ID != 660788 {
		t.Errorf("Expected user 660788, got %d", il.User.ID)
	}
}

func TestDecodeIllustFailsLoudly(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"missing id", `{"type": "illust"}`},
		{"missing type", `{"id": 1}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := DecodeIllust([]byte(test.data)); err == nil {
				t.Error("Expected a decode error")
			}
		})
	}
}

func TestNextPageNumberUnmarshal(t *testing.T) {
	tests := []struct {
		data     string
		expected NextPageNumber
		wantErr  bool
	}{
		{`2`, 2, false},
		{`false`, 0, false},
		{`null`, 0, false},
		{`"two"`, 0, true},
	}

	for _, test := range tests {
		t.Run(test.data, func(t *testing.T) {
			var n NextPageNumber
			err := json.Unmarshal([]byte(test.data), &n)
			if test.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if n != test.expected {
				t.Errorf("Expected %d, got %d", test.expected, n)
			}
		})
	}
}

func TestRankingPageDecoding(t *testing.T) {
	data := []byte(`{
		"contents": [
			{"illust_id": 100, "title": "a", "user_id": 1, "user_name": "x", "rank": 1, "yes_rank": 0},
			{"illust_id": 200, "title": "b", "user_id": 2, "user_name": "y", "rank": 2, "yes_rank": 5}
		],
		"mode": "daily",
		"next": false
	}`)

	var page RankingPage
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Contents) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(page.Contents))
	}
	if page.Contents[0].YesRank != 0 || page.Contents[1].YesRank != 5 {
		t.Error("yes_rank values did not survive decoding")
	}
	if page.Next != 0 {
		t.Errorf("Expected next=0 for the last page, got %d", page.Next)
	}
}
