package availability

import "time"

// Slot es una franja en la que el cuidador declara estar disponible.
type Slot struct {
	ID          string
	CaregiverID string
	StartAt     time.Time
	EndAt       time.Time
	CreatedAt   time.Time
}

func (s Slot) Interval() Interval { return Interval{Start: s.StartAt, End: s.EndAt} }

// Interval semiabierto [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Empty() bool { return !i.End.After(i.Start) }

// Day es la vista de un día de calendario (zona horaria de la app).
type Day struct {
	Date      string // YYYY-MM-DD
	Available []Interval
	Busy      []Interval
	Free      []Interval
}
