package forecast

import (
	"context"
	"math"
	"time"

	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/sensor"
)

// WeatherPoint is the expected weather for one forecast hour
type WeatherPoint struct {
	Time        time.Time
	Irradiance  float64 // W/m² on the panel plane
	CloudCover  float64 // 0 clear .. 1 overcast
	Temperature float64 // °C
}

// Input is the weather outlook a prediction is computed from
type Input struct {
	GeneratedAt time.Time
	Hourly      []WeatherPoint
}

// ClimatologySource builds a clear-sky outlook for the 24 hours following a
// reading, scaled by season and anchored on the reading's temperature. It
// stands in for an external weather service.
type ClimatologySource struct {
	Hours      int
	CloudCover float64
}

// NewClimatologySource creates a 24 hour source with light cloud cover
func NewClimatologySource() *ClimatologySource {
	return &ClimatologySource{Hours: 24, CloudCover: 0.2}
}

// ForecastInput returns the outlook starting at the first full hour after the reading
func (s *ClimatologySource) ForecastInput(ctx context.Context, r message.SensorReading) (Input, error) {
	if err := ctx.Err(); err != nil {
		return Input{}, err
	}

	at := r.Time()
	start := at.Truncate(time.Hour).Add(time.Hour)
	points := make([]WeatherPoint, 0, s.Hours)
	for i := 0; i < s.Hours; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		sun := sensor.Daylight(t)
		points = append(points, WeatherPoint{
			Time:        t,
			Irradiance:  1000 * sun * seasonal(t),
			CloudCover:  s.CloudCover,
			Temperature: r.Temperature + 8*(sun-0.5),
		})
	}
	return Input{GeneratedAt: at, Hourly: points}, nil
}

// seasonal peaks at the June solstice and bottoms out at 0.5 in December
func seasonal(t time.Time) float64 {
	return 0.75 + 0.25*math.Cos(2*math.Pi*float64(t.YearDay()-172)/365)
}
