package forecast

// Forecast is the WillyWeather weather.json payload for
// forecasts=weather,uv.
type Forecast struct {
	Location  Location  `json:"location"`
	Forecasts Forecasts `json:"forecasts"`
}

type Location struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Region   string  `json:"region"`
	State    string  `json:"state"`
	Postcode string  `json:"postcode"`
	TimeZone string  `json:"timeZone"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	TypeID   int64   `json:"typeId"`
}

type Forecasts struct {
	Weather Weather `json:"weather"`
	UV      UV      `json:"uv"`
}

type Weather struct {
	Days          []WeatherDay `json:"days"`
	Units         Units        `json:"units"`
	IssueDateTime string       `json:"issueDateTime"`
}

type WeatherDay struct {
	DateTime string         `json:"dateTime"`
	Entries  []WeatherEntry `json:"entries"`
}

type WeatherEntry struct {
	DateTime          string `json:"dateTime"`
	PrecisCode        string `json:"precisCode"`
	Precis            string `json:"precis"`
	PrecisOverlayCode string `json:"precisOverlayCode"`
	Night             bool   `json:"night"`
	Min               int64  `json:"min"`
	Max               int64  `json:"max"`
}

type Units struct {
	Temperature string `json:"temperature"`
}

type UV struct {
	Days          []UVDay `json:"days"`
	IssueDateTime string  `json:"issueDateTime"`
}

type UVDay struct {
	DateTime string    `json:"dateTime"`
	Entries  []UVEntry `json:"entries"`
	Alert    Alert     `json:"alert"`
}

type UVEntry struct {
	DateTime string  `json:"dateTime"`
	Index    float64 `json:"index"`
	Scale    string  `json:"scale"`
}

type Alert struct {
	MaxIndex      float64 `json:"maxIndex"`
	Scale         string  `json:"scale"`
	StartDateTime string  `json:"startDateTime"`
	EndDateTime   string  `json:"endDateTime"`
}

// Day is the summarised forecast for one day.
type Day struct {
	DateTime    string   `json:"date_time"`
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Emoji       string   `json:"emoji"`
	Min         int64    `json:"min"`
	Max         int64    `json:"max"`
	UV          *float64 `json:"uv"`
}

// Summary is the forecast endpoint response.
type Summary struct {
	Location string `json:"location"`
	Days     []Day  `json:"days"`
}
