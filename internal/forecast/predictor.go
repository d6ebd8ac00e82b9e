package forecast

import (
	"fmt"
	"math"

	"pv-tracker-bridge/internal/message"
)

// BaselinePredictor estimates panel output from irradiance with temperature
// derating. A zero RatedPowerW means the model has not been trained for this
// installation and no prediction is produced.
type BaselinePredictor struct {
	RatedPowerW float64
}

// NewBaselinePredictor creates a predictor for a panel of the given capacity
func NewBaselinePredictor(ratedPowerW float64) *BaselinePredictor {
	return &BaselinePredictor{RatedPowerW: ratedPowerW}
}

// PredictNextDay returns one point per input hour, or nil when the model is
// untrained or the input is empty.
func (p *BaselinePredictor) PredictNextDay(r message.SensorReading, in Input) (*message.Prediction, error) {
	if p.RatedPowerW <= 0 || len(in.Hourly) == 0 {
		return nil, nil
	}

	horizon := make([]message.HorizonPoint, 0, len(in.Hourly))
	var producing []float64
	for _, w := range in.Hourly {
		if w.Irradiance < 0 || math.IsNaN(w.Irradiance) || w.CloudCover < 0 || w.CloudCover > 1 {
			return nil, fmt.Errorf("invalid forecast input at %s: irradiance %g, cloud cover %g",
				w.Time.Format("2006-01-02 15:04"), w.Irradiance, w.CloudCover)
		}

		power := p.RatedPowerW * w.Irradiance / 1000 * (1 - 0.75*w.CloudCover) * derate(w.Temperature)
		if power > 0 {
			producing = append(producing, power)
		}
		horizon = append(horizon, message.HorizonPoint{
			Timestamp:      message.UnixSeconds(w.Time),
			PredictedPower: power,
		})
	}

	conf := confidence(producing)
	for i := range horizon {
		if horizon[i].PredictedPower > 0 {
			horizon[i].Confidence = conf
		}
	}

	return &message.Prediction{
		GeneratedAt: message.UnixSeconds(in.GeneratedAt),
		Horizon:     horizon,
	}, nil
}

// derate applies the panel temperature coefficient
func derate(temperature float64) float64 {
	switch {
	case temperature > 35:
		return 0.9
	case temperature < 15:
		return 0.95
	default:
		return 1
	}
}

// confidence is 1 - coefficient of variation over producing hours, in [0,1]
func confidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))

	return math.Min(1, math.Max(0, 1-std/mean))
}
