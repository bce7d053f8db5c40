package sqlstore

// Postgres deployments apply db/migrations instead.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS sdqa_Metric (
  sdqa_metricId INTEGER PRIMARY KEY,
  metricName TEXT NOT NULL UNIQUE,
  physicalUnits TEXT NOT NULL DEFAULT '',
  dataType TEXT NOT NULL,
  definition TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sdqa_Threshold (
  sdqa_thresholdId INTEGER PRIMARY KEY,
  sdqa_metricId INTEGER NOT NULL REFERENCES sdqa_Metric(sdqa_metricId),
  upperThreshold REAL,
  lowerThreshold REAL,
  createdDate DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sdqa_ImageStatus (
  sdqa_imageStatusId INTEGER PRIMARY KEY,
  statusName TEXT NOT NULL UNIQUE,
  definition TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sdqa_Rating_ForScienceAmpExposure (
  sdqa_ratingId INTEGER PRIMARY KEY AUTOINCREMENT,
  sdqa_metricId INTEGER NOT NULL,
  sdqa_thresholdId INTEGER NOT NULL,
  ampExposureId INTEGER NOT NULL,
  metricValue REAL NOT NULL,
  metricErr REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rating_amp_parent ON sdqa_Rating_ForScienceAmpExposure(ampExposureId);

CREATE TABLE IF NOT EXISTS sdqa_Rating_ForScienceCCDExposure (
  sdqa_ratingId INTEGER PRIMARY KEY AUTOINCREMENT,
  sdqa_metricId INTEGER NOT NULL,
  sdqa_thresholdId INTEGER NOT NULL,
  ccdExposureId INTEGER NOT NULL,
  metricValue REAL NOT NULL,
  metricErr REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rating_ccd_parent ON sdqa_Rating_ForScienceCCDExposure(ccdExposureId);

CREATE TABLE IF NOT EXISTS sdqa_Rating_ForScienceFPAExposure (
  sdqa_ratingId INTEGER PRIMARY KEY AUTOINCREMENT,
  sdqa_metricId INTEGER NOT NULL,
  sdqa_thresholdId INTEGER NOT NULL,
  exposureId INTEGER NOT NULL,
  metricValue REAL NOT NULL,
  metricErr REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rating_fpa_parent ON sdqa_Rating_ForScienceFPAExposure(exposureId);
`

// MySQL rejects multi-statement Exec without multiStatements=true, so the
// statements are kept apart.
var schemaMySQL = []string{
	`CREATE TABLE IF NOT EXISTS sdqa_Metric (
  sdqa_metricId INT NOT NULL,
  metricName VARCHAR(30) NOT NULL,
  physicalUnits VARCHAR(30) NOT NULL DEFAULT '',
  dataType CHAR(5) NOT NULL,
  definition VARCHAR(255) NOT NULL DEFAULT '',
  PRIMARY KEY (sdqa_metricId),
  UNIQUE KEY (metricName)
)`,
	`CREATE TABLE IF NOT EXISTS sdqa_Threshold (
  sdqa_thresholdId INT NOT NULL,
  sdqa_metricId INT NOT NULL,
  upperThreshold DOUBLE NULL,
  lowerThreshold DOUBLE NULL,
  createdDate TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (sdqa_thresholdId),
  KEY (sdqa_metricId)
)`,
	`CREATE TABLE IF NOT EXISTS sdqa_ImageStatus (
  sdqa_imageStatusId INT NOT NULL,
  statusName VARCHAR(30) NOT NULL,
  definition VARCHAR(255) NOT NULL DEFAULT '',
  PRIMARY KEY (sdqa_imageStatusId),
  UNIQUE KEY (statusName)
)`,
	`CREATE TABLE IF NOT EXISTS sdqa_Rating_ForScienceAmpExposure (
  sdqa_ratingId BIGINT NOT NULL AUTO_INCREMENT,
  sdqa_metricId INT NOT NULL,
  sdqa_thresholdId INT NOT NULL,
  ampExposureId BIGINT NOT NULL,
  metricValue DOUBLE NOT NULL,
  metricErr DOUBLE NOT NULL,
  PRIMARY KEY (sdqa_ratingId),
  KEY (ampExposureId)
)`,
	`CREATE TABLE IF NOT EXISTS sdqa_Rating_ForScienceCCDExposure (
  sdqa_ratingId BIGINT NOT NULL AUTO_INCREMENT,
  sdqa_metricId INT NOT NULL,
  sdqa_thresholdId INT NOT NULL,
  ccdExposureId BIGINT NOT NULL,
  metricValue DOUBLE NOT NULL,
  metricErr DOUBLE NOT NULL,
  PRIMARY KEY (sdqa_ratingId),
  KEY (ccdExposureId)
)`,
	`CREATE TABLE IF NOT EXISTS sdqa_Rating_ForScienceFPAExposure (
  sdqa_ratingId BIGINT NOT NULL AUTO_INCREMENT,
  sdqa_metricId INT NOT NULL,
  sdqa_thresholdId INT NOT NULL,
  exposureId BIGINT NOT NULL,
  metricValue DOUBLE NOT NULL,
  metricErr DOUBLE NOT NULL,
  PRIMARY KEY (sdqa_ratingId),
  KEY (exposureId)
)`,
}
