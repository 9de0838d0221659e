package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const weatherUserAgent = "lunardrift-weather/0.1"

// WeatherTool answers weather questions by geocoding the location through
// Nominatim and querying the Open-Meteo forecast API. Neither endpoint needs
// an API key.
type WeatherTool struct {
	httpClient   *http.Client
	geocodeBase  string
	forecastBase string
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		geocodeBase:  "https://nominatim.openstreetmap.org/search",
		forecastBase: "https://api.open-meteo.com/v1/forecast",
	}
}

func (t *WeatherTool) Name() string { return "get_weather" }
func (t *WeatherTool) Description() string {
	return "Get the current weather for a given location using the Open-Meteo API."
}
func (t *WeatherTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"location": {"type": "string", "description": "City name, address, or \"lat,lon\" coordinates"},
			"unit": {"type": "string", "enum": ["celsius", "fahrenheit"], "description": "Temperature unit, celsius unless specified"}
		},
		"required": ["location"]
	}`)
}

func (t *WeatherTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	location, _ := params["location"].(string)
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}
	unit, _ := params["unit"].(string)
	if unit != "fahrenheit" {
		unit = "celsius"
	}

	lat, lon, display, err := t.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{
		"latitude":         {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":        {strconv.FormatFloat(lon, 'f', 4, 64)},
		"current_weather":  {"true"},
		"temperature_unit": {unit},
	}
	var forecast struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}
	if err := t.getJSON(ctx, t.forecastBase+"?"+q.Encode(), &forecast); err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	return map[string]any{
		"location":    display,
		"temperature": forecast.CurrentWeather.Temperature,
		"unit":        unit,
		"wind_speed":  forecast.CurrentWeather.WindSpeed,
		"conditions":  weatherCodeText(forecast.CurrentWeather.WeatherCode),
	}, nil
}

// geocode resolves a location string to coordinates. "lat,lon" input skips
// the Nominatim round trip.
func (t *WeatherTool) geocode(ctx context.Context, location string) (float64, float64, string, error) {
	if lat, lon, ok := parseCoords(location); ok {
		return lat, lon, location, nil
	}

	q := url.Values{"q": {location}, "format": {"json"}, "limit": {"1"}}
	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := t.getJSON(ctx, t.geocodeBase+"?"+q.Encode(), &results); err != nil {
		return 0, 0, "", fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(results) == 0 {
		return 0, 0, "", fmt.Errorf("could not geocode location %q", location)
	}
	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, "", fmt.Errorf("geocode %q: malformed coordinates", location)
	}
	return lat, lon, results[0].DisplayName, nil
}

func (t *WeatherTool) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", weatherUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseCoords(s string) (float64, float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// weatherCodeText maps the WMO weather codes Open-Meteo returns to text.
func weatherCodeText(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
