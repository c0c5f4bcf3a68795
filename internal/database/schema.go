package database

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id       BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sensors (
		id         BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		location   TEXT NOT NULL DEFAULT '',
		min_temp   DOUBLE PRECISION NOT NULL,
		max_temp   DOUBLE PRECISION NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (min_temp < max_temp)
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		id              BIGSERIAL PRIMARY KEY,
		sensor_id       BIGINT NOT NULL REFERENCES sensors(id),
		temperature     DOUBLE PRECISION NOT NULL,
		humidity        DOUBLE PRECISION NOT NULL,
		timestamp       TIMESTAMPTZ NOT NULL,
		alert_triggered BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS readings_sensor_ts ON readings (sensor_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		status      TEXT NOT NULL,
		created_by  BIGINT NOT NULL REFERENCES users(id),
		assigned_to BIGINT REFERENCES users(id),
		reading_id  BIGINT UNIQUE REFERENCES readings(id),
		sensor_id   BIGINT REFERENCES sensors(id),
		created_at  TIMESTAMPTZ NOT NULL,
		closed_at   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id          BIGSERIAL PRIMARY KEY,
		actor       TEXT NOT NULL,
		kind        TEXT NOT NULL,
		action      TEXT NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL,
		sensor_id   BIGINT,
		reading_id  BIGINT,
		incident_id BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_ts ON audit_events (timestamp, id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sensors (
		id         INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		location   TEXT NOT NULL DEFAULT '',
		min_temp   REAL NOT NULL,
		max_temp   REAL NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		CHECK (min_temp < max_temp)
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_id       INTEGER NOT NULL REFERENCES sensors(id),
		temperature     REAL NOT NULL,
		humidity        REAL NOT NULL,
		timestamp       TIMESTAMP NOT NULL,
		alert_triggered BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS readings_sensor_ts ON readings (sensor_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		status      TEXT NOT NULL,
		created_by  INTEGER NOT NULL REFERENCES users(id),
		assigned_to INTEGER REFERENCES users(id),
		reading_id  INTEGER UNIQUE REFERENCES readings(id),
		sensor_id   INTEGER REFERENCES sensors(id),
		created_at  TIMESTAMP NOT NULL,
		closed_at   TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		actor       TEXT NOT NULL,
		kind        TEXT NOT NULL,
		action      TEXT NOT NULL,
		timestamp   TIMESTAMP NOT NULL,
		sensor_id   INTEGER,
		reading_id  INTEGER,
		incident_id INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_ts ON audit_events (timestamp, id)`,
}
