package generic

// BusinessHoursIn counts available working hours in w: every calendar date
// from w.Start's date to w.End's date inclusive contributes HoursPerWorkday on
// Monday-Friday and nothing on weekends. Boundary dates count as full days even
// when the window only touches part of them; utilization is a ratio, so the
// coarse model is sufficient.
//
// Precondition: w.Start <= w.End. An inverted window yields 0.
func (c Calendar) BusinessHoursIn(w Window) Hours {
	workdays := 0
	for _, day := range w.Dates(c) {
		if c.IsWorkday(day) {
			workdays++
		}
	}
	return HoursFromFloat(float64(workdays * HoursPerWorkday))
}

// BusinessHours is BusinessHoursIn on the UTC calendar.
func BusinessHours(w Window) Hours {
	return Calendar{}.BusinessHoursIn(w)
}
