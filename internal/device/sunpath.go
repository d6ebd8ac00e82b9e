package device

import "time"

// Linear fits of the solar hour angle per month. Before noon the servo sits
// at 90 - (slope*h + before); after noon at 90 + (-slope*h + after).
type hourFit struct {
	slope  float64
	before float64
	after  float64
}

var monthlyFits = [12]hourFit{
	time.January - 1:   {slope: -14.8770, before: 180.7787, after: -176.2698},
	time.February - 1:  {slope: -14.8944, before: 180.3061, after: -177.1592},
	time.March - 1:     {slope: -14.9048, before: 179.5944, after: -178.1219},
	time.April - 1:     {slope: -14.8998, before: 178.7357, after: -178.8592},
	time.May - 1:       {slope: -14.8826, before: 177.9410, after: -179.2425},
	time.June - 1:      {slope: -14.8700, before: 177.5208, after: -179.3582},
	time.July - 1:      {slope: -14.8763, before: 177.7205, after: -179.3098},
	time.August - 1:    {slope: -14.8943, before: 178.4277, after: -179.0359},
	time.September - 1: {slope: -14.9050, before: 179.2921, after: -178.4278},
	time.October - 1:   {slope: -14.8993, before: 180.0845, after: -177.4992},
	time.November - 1:  {slope: -14.8820, before: 180.6661, after: -176.5028},
	time.December - 1:  {slope: -14.8699, before: 180.9198, after: -175.9577},
}

// SunAngle returns the servo angle that faces the sun at t's local hour.
// Hours where the fit leaves the servo range (night) park the panel at 90.
func SunAngle(t time.Time) float64 {
	fit := monthlyFits[t.Month()-1]
	hour := float64(t.Hour())
	if hour == 0 {
		hour = 24
	}

	switch {
	case hour < 12:
		angle := 90 - (fit.slope*hour + fit.before)
		if angle < MinAngle {
			return DefaultAngle
		}
		return angle
	case hour == 12:
		return DefaultAngle
	default:
		angle := 90 + (-fit.slope*hour + fit.after)
		if angle > MaxAngle {
			return DefaultAngle
		}
		return angle
	}
}
