// Package airquality fetches exposure data from an external air pollution
// API and converts raw pollutant concentrations to the US EPA AQI scale.
package airquality

// breakpoint maps a concentration range to an AQI range, per the EPA
// piecewise-linear index definition.
type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

var pm25Breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 500.4, 301, 500},
}

var pm10Breakpoints = []breakpoint{
	{0, 54, 0, 50},
	{55, 154, 51, 100},
	{155, 254, 101, 150},
	{255, 354, 151, 200},
	{355, 424, 201, 300},
	{425, 604, 301, 500},
}

// AQIFromPM25 converts a PM2.5 concentration (µg/m³) to the US AQI scale.
func AQIFromPM25(concentration float64) float64 {
	return aqiFrom(pm25Breakpoints, concentration)
}

// AQIFromPM10 converts a PM10 concentration (µg/m³) to the US AQI scale.
func AQIFromPM10(concentration float64) float64 {
	return aqiFrom(pm10Breakpoints, concentration)
}

// CombinedAQI returns the governing AQI: the maximum of the per-pollutant
// sub-indices, which is how the EPA reports a site's index.
func CombinedAQI(pm25, pm10 float64) float64 {
	a25 := AQIFromPM25(pm25)
	a10 := AQIFromPM10(pm10)
	if a10 > a25 {
		return a10
	}
	return a25
}

func aqiFrom(bps []breakpoint, c float64) float64 {
	if c <= 0 {
		return 0
	}
	for _, bp := range bps {
		if c <= bp.cHigh {
			if c < bp.cLow {
				c = bp.cLow
			}
			return bp.iLow + (c-bp.cLow)*(bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)
		}
	}
	return 500
}
