package domain

import "time"

// GuideDueDay is the day of the competency month on which the DAS is due.
const GuideDueDay = 20

// DeclarationMilestones are the countdown days, before the deadline, on
// which a declaration reminder fires.
var DeclarationMilestones = []int{30, 15, 7, 3}

// GuideDueDate is midnight of the due day in the fiscal time zone.
func GuideDueDate(year int, month time.Month, loc *time.Location) time.Time {
	return time.Date(year, month, GuideDueDay, 0, 0, 0, 0, locOrUTC(loc))
}

// DeclarationDeadline is May 31 of the year after the calendar year.
func DeclarationDeadline(calendarYear int, loc *time.Location) time.Time {
	return time.Date(calendarYear+1, time.May, 31, 0, 0, 0, 0, locOrUTC(loc))
}

// StartOfDay truncates now to midnight in loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(locOrUTC(loc))
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// DaysUntil counts whole calendar days from today to the deadline date,
// both evaluated in loc. It is negative once the deadline has passed.
func DaysUntil(deadline, now time.Time, loc *time.Location) int {
	loc = locOrUTC(loc)
	today := StartOfDay(now, loc)
	d := deadline.In(loc)
	target := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(target.Sub(from).Hours() / 24)
}

// DueMilestone returns the smallest milestone not below daysLeft, so a
// missed tick still fires the reminder for the window it fell in. ok is
// false when the deadline has passed or is further away than every
// milestone.
func DueMilestone(daysLeft int) (milestone int, ok bool) {
	if daysLeft < 0 {
		return 0, false
	}
	best := -1
	for _, m := range DeclarationMilestones {
		if m >= daysLeft && (best < 0 || m < best) {
			best = m
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// BeforeRegistration reports whether the guide's competency month precedes
// the month the entity was registered in. Those months were never owed: the
// guide exists but is neither flipped to OVERDUE nor reminded about. A zero
// registeredAt disables the check.
func BeforeRegistration(g DASGuide, registeredAt time.Time, loc *time.Location) bool {
	if registeredAt.IsZero() {
		return false
	}
	r := registeredAt.In(locOrUTC(loc))
	if g.Year != r.Year() {
		return g.Year < r.Year()
	}
	return g.Month < int(r.Month())
}
