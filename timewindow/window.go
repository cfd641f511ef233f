package timewindow

import (
	"strings"

	"github.com/google/btree"
	"github.com/royalcat/rgeocount/geomodel"
)

// Window selects the points that count toward aggregation.
// The zero value is AllTime. Windows are comparable.
type Window struct {
	exact bool
	date  Date
}

var AllTime = Window{}

func ExactDate(d Date) Window {
	return Window{exact: true, date: d}
}

// ParseWindow accepts an empty string, "all", "all-time" or "All Time" for AllTime
// and YYYY-MM-DD for a single date.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "all-time", "all time":
		return AllTime, nil
	}

	d, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return Window{}, err
	}
	return ExactDate(d), nil
}

func (w Window) IsAllTime() bool {
	return !w.exact
}

// Date returns the selected date, ok is false for AllTime.
func (w Window) Date() (Date, bool) {
	return w.date, w.exact
}

func (w Window) String() string {
	if !w.exact {
		return "all time"
	}
	return w.date.String()
}

func (w Window) Match(p geomodel.PointRecord) bool {
	return !w.exact || DateOf(p.Timestamp) == w.date
}

// Filter returns the points inside the window, keeping their order.
func (w Window) Filter(points []geomodel.ResolvedPoint) []geomodel.ResolvedPoint {
	if !w.exact {
		return points
	}

	out := make([]geomodel.ResolvedPoint, 0)
	for _, p := range points {
		if w.Match(p.Point) {
			out = append(out, p)
		}
	}
	return out
}

// Dates lists the distinct calendar dates of points in ascending order.
func Dates(points []geomodel.ResolvedPoint) []Date {
	tree := btree.NewG[Date](8, Date.Before)
	for _, p := range points {
		tree.ReplaceOrInsert(DateOf(p.Point.Timestamp))
	}

	out := make([]Date, 0, tree.Len())
	tree.Ascend(func(d Date) bool {
		out = append(out, d)
		return true
	})
	return out
}
