package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	f := Forecast{
		Location: Location{ID: 14576, Name: "Perth"},
		Forecasts: Forecasts{
			Weather: Weather{Days: []WeatherDay{
				{DateTime: "2025-04-14 00:00:00", Entries: []WeatherEntry{
					{PrecisCode: "fine", Precis: "Sunny", Min: 14, Max: 27},
					{PrecisCode: "shower", Precis: "Later showers", Min: 0, Max: 0},
				}},
				{DateTime: "2025-04-15 00:00:00", Entries: []WeatherEntry{
					{PrecisCode: "chance-thunderstorm-showers", Precis: "Storms", Min: 16, Max: 24},
				}},
				{DateTime: "2025-04-16 00:00:00"},
			}},
			UV: UV{Days: []UVDay{
				{DateTime: "2025-04-14 00:00:00", Alert: Alert{MaxIndex: 7}, Entries: []UVEntry{{Index: 6.5}}},
			}},
		},
	}

	s := Summarize(f)
	assert.Equal(t, "Perth", s.Location)
	require.Len(t, s.Days, 2)

	first := s.Days[0]
	assert.Equal(t, "fine", first.Code)
	assert.Equal(t, "Sunny", first.Description)
	assert.Equal(t, "☀️", first.Emoji)
	assert.EqualValues(t, 14, first.Min)
	assert.EqualValues(t, 27, first.Max)
	require.NotNil(t, first.UV)
	assert.InDelta(t, 7.0, *first.UV, 0.001)

	second := s.Days[1]
	assert.Equal(t, "⛈️", second.Emoji)
	assert.Nil(t, second.UV)
}

func TestSummarizeUVFallsBackToHourlyPeak(t *testing.T) {
	f := Forecast{Forecasts: Forecasts{
		Weather: Weather{Days: []WeatherDay{
			{DateTime: "2025-04-14 00:00:00", Entries: []WeatherEntry{{PrecisCode: "cloudy"}}},
		}},
		UV: UV{Days: []UVDay{
			{DateTime: "2025-04-14 00:00:00", Entries: []UVEntry{{Index: 2}, {Index: 9.1}, {Index: 4}}},
		}},
	}}

	s := Summarize(f)
	require.Len(t, s.Days, 1)
	require.NotNil(t, s.Days[0].UV)
	assert.InDelta(t, 9.1, *s.Days[0].UV, 0.001)
}

func TestEmoji(t *testing.T) {
	cases := map[string]string{
		"fine":              "☀️",
		"mostly-fine":       "⛅",
		"partly-cloudy":     "⛅",
		"cloudy":            "☁️",
		"overcast":          "☁️",
		"shower-or-two":     "🌧️",
		"light-rain":        "🌧️",
		"thunderstorm":      "⛈️",
		"fog":               "🌫️",
		"wind":              "💨",
		"snow":              "🌨️",
		"something-unknown": "🌡️",
	}
	for code, want := range cases {
		assert.Equal(t, want, Emoji(code), code)
	}
}

func TestHasAny(t *testing.T) {
	assert.True(t, hasAny("chance-shower-fine", "rain", "shower"))
	assert.False(t, hasAny("fine", "rain", "shower"))
	assert.False(t, hasAny("fine"))
}
