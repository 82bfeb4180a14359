package date

// Period is a calendar period used to bucket dates, for instance to expire cached data.
type Period int

// Monthly buckets dates by calendar month.
const Monthly Period = iota

// Identifier returns a short name for the period that contains d.
// Two dates in the same period share the same identifier.
func (p Period) Identifier(d Date) string {
	switch p {
	case Monthly:
		return d.Format("2006-01")
	default:
		panic("unknown period")
	}
}
