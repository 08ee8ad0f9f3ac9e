// Package dategroup splits a conversation into labelled calendar-day buckets.
package dategroup

import (
	"sort"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
)

// Bucket is one calendar day of messages.
type Bucket struct {
	Label    string
	Day      time.Time // local midnight
	Messages []api.Message
}

// Label names the day of t relative to now, both taken in now's location.
func Label(t, now time.Time) string {
	loc := now.Location()
	t = t.In(loc)
	switch delta := dayDelta(t, now); {
	case delta == 0:
		return "Today"
	case delta == 1:
		return "Yesterday"
	case delta >= 2 && delta <= 7:
		return t.Weekday().String()
	case t.Year() != now.Year():
		return t.Format("Jan 2, 2006")
	default:
		return t.Format("Jan 2")
	}
}

// dayDelta counts calendar days from t to now. Dates are built with
// time.Date so DST shifts do not skew the count.
func dayDelta(t, now time.Time) int {
	a := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Group partitions msgs into one bucket per local calendar day. Buckets are
// ordered by their earliest message, never by label, since labels repeat
// across weeks and years.
func Group(msgs []api.Message, now time.Time) []Bucket {
	loc := now.Location()
	index := map[time.Time]int{}
	var buckets []Bucket
	for _, m := range msgs {
		day := midnight(m.Timestamp.In(loc))
		i, ok := index[day]
		if !ok {
			i = len(buckets)
			index[day] = i
			buckets = append(buckets, Bucket{Label: Label(m.Timestamp, now), Day: day})
		}
		buckets[i].Messages = append(buckets[i].Messages, m)
	}

	for i := range buckets {
		b := buckets[i].Messages
		sort.SliceStable(b, func(x, y int) bool { return b[x].Timestamp.Before(b[y].Timestamp) })
	}
	sort.SliceStable(buckets, func(x, y int) bool {
		return buckets[x].Messages[0].Timestamp.Before(buckets[y].Messages[0].Timestamp)
	})
	return buckets
}
