package model

import "time"

// DefaultSessionSeconds is the length of one focus session.
const DefaultSessionSeconds int64 = 25 * 60

// Entry is one completed focus session attributed to a task snapshot.
type Entry struct {
	ID             string    `json:"id"`
	Task           Task      `json:"task"`
	ProductiveTime int64     `json:"productiveTime"` // seconds
	CreatedAt      time.Time `json:"createdAt"`
}

// ProductivityRecord holds one user's sessions for one calendar day.
// ProductivityAchieved is derived from Entries and must equal SumEntries.
type ProductivityRecord struct {
	ID                   string    `json:"id"`
	ProductivityGoal     int64     `json:"productivityGoal"`     // seconds
	ProductivityAchieved int64     `json:"productivityAchieved"` // seconds
	Entries              []Entry   `json:"entries"`
	CreatedAt            time.Time `json:"createdAt"`
}

// SumEntries returns the total productive time across all entries.
func (r *ProductivityRecord) SumEntries() int64 {
	var total int64
	for _, e := range r.Entries {
		total += e.ProductiveTime
	}
	return total
}

// AddEntry appends e and advances the achieved total by the same amount.
func (r *ProductivityRecord) AddEntry(e Entry) {
	r.Entries = append(r.Entries, e)
	r.ProductivityAchieved += e.ProductiveTime
}

// Recompute overwrites the achieved total with the sum of the entries and
// reports whether the stored value had drifted.
func (r *ProductivityRecord) Recompute() bool {
	sum := r.SumEntries()
	drifted := sum != r.ProductivityAchieved
	r.ProductivityAchieved = sum
	return drifted
}

// DayStat summarizes one calendar day for the stats view. Record is nil
// for days with no sessions.
type DayStat struct {
	Date   string              `json:"date"`
	Record *ProductivityRecord `json:"productivityData,omitempty"`
}
