package weather

// SelectDay returns a copy of f whose only day is the one dated date.
// An empty date selects the first day. When no day matches, f is returned
// unchanged so the first day is analysed.
func SelectDay(f Forecast, date string) Forecast {
	if len(f.Days) == 0 {
		return f
	}
	if date == "" {
		return Forecast{Location: f.Location, Days: f.Days[:1]}
	}
	for _, d := range f.Days {
		if d.Date == date {
			return Forecast{Location: f.Location, Days: []ForecastPoint{d}}
		}
	}
	return f
}

// MatchMarine returns the marine sample dated date. It returns nil when m is
// nil or has no sample for that day, so another day's SST is never used.
func MatchMarine(m *MarineForecast, date string) *MarineSample {
	if m == nil || len(m.Days) == 0 {
		return nil
	}
	for i := range m.Days {
		if m.Days[i].Date == date {
			s := m.Days[i]
			return &s
		}
	}
	return nil
}
