package normalize

import (
	"testing"

	"garmin-connect-sync/internal/garmin"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }
func ptrS(v string) *string   { return &v }

func rawActivity(id int64, typeKey string) *garmin.RawActivity {
	return &garmin.RawActivity{
		ActivityID:     id,
		ActivityName:   ptrS("Test Activity"),
		ActivityType:   garmin.ActivityType{TypeKey: typeKey},
		StartTimeLocal: ptrS("2024-05-01 07:30:00"),
		Duration:       ptrF(1800),
	}
}

func TestTypeKeyUnknownPassthrough(t *testing.T) {
	raw := rawActivity(1, "paddling")
	if got := TypeKey(raw); got != "paddling" {
		t.Errorf("Expected unknown type passed through, got %q", got)
	}

	raw = rawActivity(2, "")
	if got := TypeKey(raw); got != "unknown" {
		t.Errorf("Expected empty type mapped to unknown, got %q", got)
	}
}

func TestEnrichmentApplicability(t *testing.T) {
	tests := []struct {
		name        string
		typeKey     string
		distance    *float64
		wantGPS     bool
		wantWeather bool
		wantSets    bool
		wantCalls   int
	}{
		{"outdoor run with distance", "running", ptrF(5000), true, true, false, 2},
		{"outdoor run without distance", "running", nil, false, true, false, 1},
		{"treadmill-like zero distance", "running", ptrF(0), false, true, false, 1},
		{"cycling", "cycling", ptrF(30000), true, true, false, 2},
		{"walking", "walking", ptrF(2000), true, true, false, 2},
		{"hiking", "hiking", ptrF(8000), true, true, false, 2},
		{"strength training", "strength_training", nil, false, false, true, 1},
		{"strength with odd distance", "strength_training", ptrF(100), false, false, true, 1},
		{"indoor unknown type", "yoga", ptrF(100), false, false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawActivity(1, tt.typeKey)
			raw.Distance = tt.distance

			if got := NeedsGPS(raw); got != tt.wantGPS {
				t.Errorf("NeedsGPS = %v, want %v", got, tt.wantGPS)
			}
			if got := NeedsWeather(raw); got != tt.wantWeather {
				t.Errorf("NeedsWeather = %v, want %v", got, tt.wantWeather)
			}
			if got := NeedsExerciseSets(raw); got != tt.wantSets {
				t.Errorf("NeedsExerciseSets = %v, want %v", got, tt.wantSets)
			}
			if got := EstimateCalls(raw); got != tt.wantCalls {
				t.Errorf("EstimateCalls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestNormalizeBaseFields(t *testing.T) {
	raw := rawActivity(42, "running")
	raw.Distance = ptrF(5000)
	raw.Calories = ptrF(400)
	raw.AverageHR = ptrF(150)
	raw.AvgPower = ptrF(240)
	raw.AvgRunCadence = ptrF(170)

	a, sets := Normalize(raw, Enrichments{})
	if a.ID != 42 {
		t.Errorf("Expected id 42, got %d", a.ID)
	}
	if a.Type != "running" {
		t.Errorf("Expected type running, got %s", a.Type)
	}
	if a.Name == nil || *a.Name != "Test Activity" {
		t.Errorf("Expected name carried over, got %v", a.Name)
	}
	if a.AveragePower == nil || *a.AveragePower != 240 {
		t.Errorf("Expected avg power 240, got %v", a.AveragePower)
	}
	if a.AverageCadence == nil || *a.AverageCadence != 170 {
		t.Errorf("Expected run cadence picked up, got %v", a.AverageCadence)
	}
	if a.HasGPS || a.HasWeather || a.HasStrength {
		t.Error("Expected no enrichment flags without payloads")
	}
	if sets != nil {
		t.Errorf("Expected no sets, got %d", len(sets))
	}
}

func TestNormalizeCadenceBySport(t *testing.T) {
	ride := rawActivity(1, "cycling")
	ride.AvgBikeCadence = ptrF(88)
	ride.MaxBikeCadence = ptrF(110)

	a, _ := Normalize(ride, Enrichments{})
	if a.AverageCadence == nil || *a.AverageCadence != 88 {
		t.Errorf("Expected bike cadence 88, got %v", a.AverageCadence)
	}
	if a.MaxCadence == nil || *a.MaxCadence != 110 {
		t.Errorf("Expected max bike cadence 110, got %v", a.MaxCadence)
	}
}

func TestNormalizeSkipsPowerForIndoorTypes(t *testing.T) {
	raw := rawActivity(1, "strength_training")
	raw.AvgPower = ptrF(100)
	raw.AvgRunCadence = ptrF(50)

	a, _ := Normalize(raw, Enrichments{})
	if a.AveragePower != nil {
		t.Errorf("Expected power dropped for strength activity, got %v", *a.AveragePower)
	}
	if a.AverageCadence != nil {
		t.Errorf("Expected cadence dropped for strength activity, got %v", *a.AverageCadence)
	}
}

func TestNormalizeAppliesWeather(t *testing.T) {
	raw := rawActivity(1, "running")
	weather := &garmin.WeatherPayload{
		Temp:             ptrF(18),
		RelativeHumidity: ptrF(65),
		WindSpeed:        ptrF(12),
		IssueDate:        ptrS("2024-05-01T07:00:00Z"),
	}
	weather.WeatherTypeDTO = &struct {
		Desc string `json:"desc"`
	}{Desc: "Partly cloudy"}
	weather.WeatherStationDTO = &struct {
		Name string `json:"name"`
	}{Name: "EGLL"}

	a, _ := Normalize(raw, Enrichments{Weather: weather})
	if !a.HasWeather {
		t.Fatal("Expected has_weather true")
	}
	if a.WeatherTemperature == nil || *a.WeatherTemperature != 18 {
		t.Errorf("Expected temperature 18, got %v", a.WeatherTemperature)
	}
	if a.WeatherDescription == nil || *a.WeatherDescription != "Partly cloudy" {
		t.Errorf("Expected description, got %v", a.WeatherDescription)
	}
	if a.WeatherStation == nil || *a.WeatherStation != "EGLL" {
		t.Errorf("Expected station EGLL, got %v", a.WeatherStation)
	}
}
