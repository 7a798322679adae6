package forecast

import (
	"strings"
)

// Summarize reduces a WillyWeather forecast to one entry per day. The UV
// value is the day's alert maximum, falling back to the highest hourly
// index, and is nil when the day has no UV data.
func Summarize(f Forecast) Summary {
	uvByDate := make(map[string]float64, len(f.Forecasts.UV.Days))
	for _, d := range f.Forecasts.UV.Days {
		peak := d.Alert.MaxIndex
		for _, e := range d.Entries {
			if e.Index > peak {
				peak = e.Index
			}
		}
		uvByDate[datePart(d.DateTime)] = peak
	}

	summary := Summary{Location: f.Location.Name, Days: make([]Day, 0, len(f.Forecasts.Weather.Days))}
	for _, d := range f.Forecasts.Weather.Days {
		if len(d.Entries) == 0 {
			continue
		}
		e := d.Entries[0]
		day := Day{
			DateTime:    d.DateTime,
			Code:        e.PrecisCode,
			Description: e.Precis,
			Emoji:       Emoji(e.PrecisCode),
			Min:         e.Min,
			Max:         e.Max,
		}
		if uv, ok := uvByDate[datePart(d.DateTime)]; ok {
			day.UV = &uv
		}
		summary.Days = append(summary.Days, day)
	}
	return summary
}

// Emoji maps a WillyWeather precis code to an emoji.
func Emoji(code string) string {
	code = strings.ToLower(code)
	switch {
	case hasAny(code, "thunderstorm", "storm"):
		return "⛈️"
	case hasAny(code, "snow", "frost", "hail", "sleet"):
		return "🌨️"
	case hasAny(code, "shower", "rain", "drizzle"):
		return "🌧️"
	case hasAny(code, "fog", "dust", "haze", "mist"):
		return "🌫️"
	case hasAny(code, "wind"):
		return "💨"
	case hasAny(code, "partly-cloudy", "high-cloud", "mostly-fine"):
		return "⛅"
	case hasAny(code, "cloud", "overcast"):
		return "☁️"
	case hasAny(code, "fine", "sunny", "clear"):
		return "☀️"
	default:
		return "🌡️"
	}
}

// datePart returns the YYYY-MM-DD prefix of a WillyWeather date time.
func datePart(dt string) string {
	if len(dt) >= 10 {
		return dt[:10]
	}
	return dt
}

// hasAny reports whether s contains any of subs.
func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
