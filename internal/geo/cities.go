package geo

// City is a labelled reference point drawn on static maps.
type City struct {
	Name     string
	Location Point
}

// MajorCities lists the Pennsylvania cities labelled on the static map.
var MajorCities = []City{
	{Name: "Philadelphia", Location: Point{Lat: 39.9526, Lon: -75.1652}},
	{Name: "Pittsburgh", Location: Point{Lat: 40.4406, Lon: -79.9959}},
	{Name: "Allentown", Location: Point{Lat: 40.6084, Lon: -75.4714}},
	{Name: "Erie", Location: Point{Lat: 42.1292, Lon: -80.0852}},
	{Name: "Reading", Location: Point{Lat: 40.3356, Lon: -75.9269}},
	{Name: "Scranton", Location: Point{Lat: 41.4090, Lon: -75.6624}},
	{Name: "Bethlehem", Location: Point{Lat: 40.6259, Lon: -75.3705}},
	{Name: "Lancaster", Location: Point{Lat: 40.0379, Lon: -76.3055}},
	{Name: "Harrisburg", Location: Point{Lat: 40.2732, Lon: -76.8867}},
	{Name: "Altoona", Location: Point{Lat: 40.5186, Lon: -78.3947}},
}
