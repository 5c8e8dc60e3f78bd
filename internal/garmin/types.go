package garmin

// ActivityType is the nested type descriptor on a raw activity
type ActivityType struct {
	TypeKey string `json:"typeKey"`
}

// RawActivity is one activity summary as returned by the list endpoint.
// Garmin omits fields that don't apply to an activity type, so every
// metric is pointer-typed; absent stays absent through normalization.
type RawActivity struct {
	ActivityID     int64        `json:"activityId"`
	ActivityName   *string      `json:"activityName"`
	ActivityType   ActivityType `json:"activityType"`
	StartTimeLocal *string      `json:"startTimeLocal"`
	Duration       *float64     `json:"duration"`
	MovingDuration *float64     `json:"movingDuration"`

	Calories      *float64 `json:"calories"`
	AverageHR     *float64 `json:"averageHR"`
	MaxHR         *float64 `json:"maxHR"`
	Distance      *float64 `json:"distance"`
	AverageSpeed  *float64 `json:"averageSpeed"`
	MaxSpeed      *float64 `json:"maxSpeed"`
	ElevationGain *float64 `json:"elevationGain"`
	ElevationLoss *float64 `json:"elevationLoss"`

	AvgPower            *float64 `json:"avgPower"`
	MaxPower            *float64 `json:"maxPower"`
	NormalizedPower     *float64 `json:"normalizedPower"`
	TrainingStressScore *float64 `json:"trainingStressScore"`

	// Cadence arrives under a sport-specific key
	AvgRunCadence  *float64 `json:"avgRunCadence"`
	MaxRunCadence  *float64 `json:"maxRunCadence"`
	AvgBikeCadence *float64 `json:"avgBikeCadence"`
	MaxBikeCadence *float64 `json:"maxBikeCadence"`
}

// GeoPoint is one fix inside a structured polyline DTO
type GeoPoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Time *int64  `json:"time"`
}

// GeoPolylineDTO is the structured GPS shape. Some responses carry only
// start/end points, some a full polyline, some explicit bounds.
type GeoPolylineDTO struct {
	StartPoint *GeoPoint  `json:"startPoint"`
	EndPoint   *GeoPoint  `json:"endPoint"`
	MinLat     *float64   `json:"minLat"`
	MaxLat     *float64   `json:"maxLat"`
	MinLon     *float64   `json:"minLon"`
	MaxLon     *float64   `json:"maxLon"`
	Polyline   []GeoPoint `json:"polyline"`
}

// GPSPayload is the raw response from the activity details endpoint.
// The same concept arrives in two shapes: a flat polyline of
// [timestamp, lat, lon] triples, or a structured geoPolylineDTO. The
// normalizer resolves the variant exactly once.
type GPSPayload struct {
	Polyline       [][]float64     `json:"polyline"`
	GeoPolylineDTO *GeoPolylineDTO `json:"geoPolylineDTO"`
}

// WeatherPayload is the raw weather snapshot for an activity
type WeatherPayload struct {
	Temp             *float64 `json:"temp"`
	RelativeHumidity *float64 `json:"relativeHumidity"`
	WindSpeed        *float64 `json:"windSpeed"`
	IssueDate        *string  `json:"issueDate"`

	WeatherTypeDTO *struct {
		Desc string `json:"desc"`
	} `json:"weatherTypeDTO"`

	WeatherStationDTO *struct {
		Name string `json:"name"`
	} `json:"weatherStationDTO"`
}

// RawExercise identifies the movement a set belongs to
type RawExercise struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// RawSet is one logged set, ACTIVE or REST, in fetch order. Weight is
// reported in milligrams.
type RawSet struct {
	SetType         string        `json:"setType"`
	RepetitionCount *int64        `json:"repetitionCount"`
	Weight          *float64      `json:"weight"`
	Duration        *float64      `json:"duration"`
	StartTime       *string       `json:"startTime"`
	Exercises       []RawExercise `json:"exercises"`
}

// SetTypeActive and SetTypeRest are the two set types Garmin reports
const (
	SetTypeActive = "ACTIVE"
	SetTypeRest   = "REST"
)

// exerciseSetsResponse is the envelope around the exercise sets endpoint
type exerciseSetsResponse struct {
	ExerciseSets []RawSet `json:"exerciseSets"`
}
