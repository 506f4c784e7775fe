package config

// Config holds all configuration of the functional test kit.
type Config struct {
	Log            LogConfig            `mapstructure:"log"            validate:"required"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Snapshot       SnapshotConfig       `mapstructure:"snapshot"`
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	Blob           BlobConfig           `mapstructure:"blob"           validate:"required"`
	Assets         AssetsConfig         `mapstructure:"assets"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// DatabaseConfig describes the database the test suite runs against.
type DatabaseConfig struct {
	// Driver is the database/sql driver name (pgx, mysql, sqlite).
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=pgx postgres mysql sqlite"`
	// URL is the DSN handed to the driver.
	URL string `mapstructure:"url"`
	// Extensions lists extensions created before fixtures load, per engine.
	Extensions ExtensionsConfig `mapstructure:"extensions"`
}

// ExtensionsConfig lists database extensions per engine. Only PostgreSQL
// extensions are applied.
type ExtensionsConfig struct {
	Pgsql []string `mapstructure:"pgsql" validate:"dive,required"`
}

// SnapshotConfig controls the fixture dump cache.
type SnapshotConfig struct {
	// CacheDB enables dump/restore of fixture data between runs.
	CacheDB bool `mapstructure:"cache_db"`
	// CacheDir is the directory holding the db_dump folder.
	CacheDir string `mapstructure:"cache_dir" validate:"required"`
}

// AuthenticationConfig holds the credentials injected into fixtures that
// accept default authentication.
type AuthenticationConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// BlobConfig selects the blob store backing the content repository.
type BlobConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=fs s3"`
	// Dir is the root directory of the fs driver.
	Dir string `mapstructure:"dir" validate:"required_if=Driver fs"`

	S3Bucket          string `mapstructure:"s3_bucket"           validate:"required_if=Driver s3"`
	S3Region          string `mapstructure:"s3_region"`
	S3Endpoint        string `mapstructure:"s3_endpoint"         validate:"omitempty,url"`
	S3UsePathStyle    bool   `mapstructure:"s3_use_path_style"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`
}

// AssetsConfig locates files the HTTP test kernel and content fixtures need.
type AssetsConfig struct {
	// ManifestFile is created with "{}" when missing so asset helpers can boot.
	ManifestFile string `mapstructure:"manifest_file"`
	// Dir holds template files copied into the content repository.
	Dir string `mapstructure:"dir"`
}
