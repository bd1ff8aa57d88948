package availability

import (
	"sort"
	"time"
)

// Merge ordena y une intervalos que se solapan o se tocan. Descarta vacíos.
func Merge(in []Interval) []Interval {
	items := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			items = append(items, iv)
		}
	}
	if len(items) == 0 {
		return []Interval{}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Start.Equal(items[j].Start) {
			return items[i].End.Before(items[j].End)
		}
		return items[i].Start.Before(items[j].Start)
	})

	out := []Interval{items[0]}
	for _, iv := range items[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Clip recorta cada intervalo a [from, to).
func Clip(in []Interval, from, to time.Time) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.Start.Before(from) {
			iv.Start = from
		}
		if iv.End.After(to) {
			iv.End = to
		}
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	return out
}

// Subtract devuelve a - b. Ambos deben venir de Merge.
func Subtract(a, b []Interval) []Interval {
	out := make([]Interval, 0, len(a))
	for _, iv := range a {
		cur := iv.Start
		for _, cut := range b {
			if !cut.End.After(cur) {
				continue
			}
			if !cut.Start.Before(iv.End) {
				break
			}
			if cut.Start.After(cur) {
				out = append(out, Interval{Start: cur, End: cut.Start})
			}
			cur = cut.End
			if !cur.Before(iv.End) {
				break
			}
		}
		if cur.Before(iv.End) {
			out = append(out, Interval{Start: cur, End: iv.End})
		}
	}
	return out
}

// FreeWithin calcula disponible - ocupado dentro de [from, to) sin partir por días.
func FreeWithin(slots, busy []Interval, from, to time.Time) []Interval {
	return Subtract(Merge(Clip(slots, from, to)), Merge(Clip(busy, from, to)))
}

// Covers: un único intervalo libre contiene [start, end).
func Covers(free []Interval, start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	for _, iv := range free {
		if !iv.Start.After(start) && !iv.End.Before(end) {
			return true
		}
	}
	return false
}

// BuildCalendar arma un Day por fecha en [first, last] (inclusive) en loc.
// first y last se interpretan solo por su fecha.
func BuildCalendar(slots, busy []Interval, first, last time.Time, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	first = startOfDay(first, loc)
	last = startOfDay(last, loc)

	days := make([]Day, 0)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		// AddDate sobre medianoche local respeta los cambios de horario.
		next := d.AddDate(0, 0, 1)

		avail := Merge(Clip(slots, d, next))
		taken := Merge(Clip(busy, d, next))

		days = append(days, Day{
			Date:      d.Format(DateLayout),
			Available: avail,
			Busy:      taken,
			Free:      Subtract(avail, taken),
		})
	}
	return days
}

const DateLayout = "2006-01-02"

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
