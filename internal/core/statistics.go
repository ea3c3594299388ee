package core

// Statistics is the aggregate served by the expense API.
type Statistics struct {
	TotalAmount    int64
	DisplayAmount  int64
	SavedAmount    int64
	SatisfiedCount int64
	TotalCount     int64
}

// Normalize fills SavedAmount when the server left it out.
func (s Statistics) Normalize() Statistics {
	if s.SavedAmount == 0 && s.TotalAmount > s.DisplayAmount {
		s.SavedAmount = s.TotalAmount - s.DisplayAmount
	}
	return s
}

// StatisticsOf computes the aggregate locally from records. It is used when
// the dashboard is served from the offline snapshot.
func StatisticsOf(expenses []Expense) Statistics {
	var st Statistics
	for _, e := range expenses {
		st.TotalCount++
		st.TotalAmount += e.Amount
		if e.Rating.IsPerfect() {
			st.SatisfiedCount++
			continue
		}
		st.DisplayAmount += e.Amount
	}
	st.SavedAmount = st.TotalAmount - st.DisplayAmount
	return st
}
