package config

import (
	"encoding/json"
	"os"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/flagx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "5m" and integer nanoseconds are accepted. Pointer fields distinguish
// "absent" from zero.
type JsonConfig struct {
	HTTPAddr          *string         `json:"http_addr"`
	PublicBaseURL     *string         `json:"public_base_url"`
	DatabaseDSN       *string         `json:"database_dsn"`
	MasterPassword    *string         `json:"master_password"`
	KDFIterations     *int            `json:"kdf_iterations"`
	StorageBackend    *string         `json:"storage_backend"`
	StoragePath       *string         `json:"storage_path"`
	S3RootUser        *string         `json:"s3_root_user"`
	S3RootPassword    *string         `json:"s3_root_password"`
	S3Bucket          *string         `json:"s3_bucket"`
	S3Region          *string         `json:"s3_region"`
	S3BaseEndpoint    *string         `json:"s3_base_endpoint"`
	DefaultLimitBytes *int64          `json:"default_limit_bytes"`
	LinkTTL           *timex.Duration `json:"link_ttl"`
	SweepInterval     *timex.Duration `json:"sweep_interval"`
	MaxFolderDepth    *int            `json:"max_folder_depth"`
	LogFormat         *string         `json:"log_format"`
	LogLevel          *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Without the flag nothing is loaded. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setIf(&config.HTTPAddr, c.HTTPAddr)
	setIf(&config.PublicBaseURL, c.PublicBaseURL)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.MasterPassword, c.MasterPassword)
	setIf(&config.KDFIterations, c.KDFIterations)
	setIf(&config.StorageBackend, c.StorageBackend)
	setIf(&config.StoragePath, c.StoragePath)
	setIf(&config.S3RootUser, c.S3RootUser)
	setIf(&config.S3RootPassword, c.S3RootPassword)
	setIf(&config.S3Bucket, c.S3Bucket)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setIf(&config.DefaultLimitBytes, c.DefaultLimitBytes)
	setIf(&config.MaxFolderDepth, c.MaxFolderDepth)
	setIf(&config.LogFormat, c.LogFormat)
	setIf(&config.LogLevel, c.LogLevel)
	if c.LinkTTL != nil {
		config.LinkTTL = c.LinkTTL.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
