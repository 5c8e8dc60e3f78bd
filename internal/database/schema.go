package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Activities table: One row per Garmin activity, flat normalized columns.
-- Every enrichment field is nullable; presence is tracked by explicit flags.
CREATE TABLE IF NOT EXISTS activities (
    id INTEGER PRIMARY KEY,  -- Garmin activity ID

    name TEXT,
    type TEXT NOT NULL,
    start_time TEXT,         -- ISO-8601, source-local time zone
    duration REAL,           -- seconds
    moving_time REAL,        -- seconds

    -- Common metrics
    calories REAL,
    average_hr REAL,
    max_hr REAL,
    distance REAL,
    average_speed REAL,
    max_speed REAL,
    elevation_gain REAL,
    elevation_loss REAL,

    -- Cardio power/cadence metrics
    average_power REAL,
    max_power REAL,
    normalized_power REAL,
    training_stress_score REAL,
    average_cadence REAL,
    max_cadence REAL,

    -- GPS enrichment
    has_gps BOOLEAN NOT NULL DEFAULT 0,
    start_latitude REAL,
    start_longitude REAL,
    end_latitude REAL,
    end_longitude REAL,
    min_latitude REAL,
    max_latitude REAL,
    min_longitude REAL,
    max_longitude REAL,
    gps_track_json TEXT,     -- ordered [{lat, lon, timestamp}]

    -- Weather enrichment
    has_weather BOOLEAN NOT NULL DEFAULT 0,
    weather_temperature REAL,
    weather_humidity REAL,
    weather_wind_speed REAL,
    weather_description TEXT,
    weather_station TEXT,
    weather_issue_time TEXT,

    -- Strength summary enrichment
    has_strength BOOLEAN NOT NULL DEFAULT 0,
    total_reps INTEGER,
    total_sets INTEGER,
    total_working_time REAL,
    total_rest_time REAL,
    work_to_rest_ratio REAL,
    work_percentage INTEGER,

    -- Metadata
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Exercise sets table: One row per logged ACTIVE set within a strength
-- activity. Rows are replaced wholesale whenever the parent is re-synced.
CREATE TABLE IF NOT EXISTS exercise_sets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    activity_id INTEGER NOT NULL,

    exercise_name TEXT NOT NULL,
    category TEXT,
    set_number INTEGER NOT NULL,  -- 1-based, per exercise, fetch order

    reps INTEGER,
    weight REAL,        -- kilograms
    duration REAL,      -- seconds
    start_time TEXT,

    -- Per-exercise rollups duplicated onto each row for query convenience
    total_reps INTEGER NOT NULL DEFAULT 0,
    total_volume REAL NOT NULL DEFAULT 0,
    total_sets INTEGER NOT NULL DEFAULT 0,
    total_working_time REAL NOT NULL DEFAULT 0,

    FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
);

-- Key-value table: sync cursor, initial-sync progress, cached aggregates
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Indexes for activities table
CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities(start_time DESC);
CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(type);
CREATE INDEX IF NOT EXISTS idx_activities_has_gps ON activities(has_gps);
CREATE INDEX IF NOT EXISTS idx_activities_has_strength ON activities(has_strength);

-- Indexes for exercise_sets table
CREATE INDEX IF NOT EXISTS idx_exercise_sets_activity ON exercise_sets(activity_id);
CREATE INDEX IF NOT EXISTS idx_exercise_sets_exercise ON exercise_sets(exercise_name);
`
