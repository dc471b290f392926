package complaints

// StatusCounts tallies complaints per status.
type StatusCounts map[Status]int

// Tally counts list per status.
func Tally(list []Complaint) StatusCounts {
	counts := StatusCounts{}
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, c := range list {
		counts[c.Status]++
	}
	return counts
}

// Total sums every status.
func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// DriverStats summarises a driver's assignments.
type DriverStats struct {
	Assigned   int
	InProgress int
	Completed  int
	Total      int
}

// DriverSummary computes driver stats from the full assignment history.
func DriverSummary(list []Complaint) DriverStats {
	counts := Tally(list)
	return DriverStats{
		Assigned:   counts[StatusAssigned],
		InProgress: counts[StatusInProgress],
		Completed:  counts[StatusCompleted],
		Total:      counts.Total(),
	}
}

// CitizenStats summarises a citizen's complaints. Open covers pending,
// assigned and in-progress complaints.
type CitizenStats struct {
	Total     int
	Open      int
	Completed int
}

// CitizenSummary computes citizen stats.
func CitizenSummary(list []Complaint) CitizenStats {
	counts := Tally(list)
	return CitizenStats{
		Total:     counts.Total(),
		Open:      counts[StatusPending] + counts[StatusAssigned] + counts[StatusInProgress],
		Completed: counts[StatusCompleted],
	}
}
