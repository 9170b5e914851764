package config

import (
	"flag"
	"os"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/flagx"
)

var serverFlags = []string{
	"-a", "-l", "-d", "-m", "-i", "-s", "-f", "-u", "-p", "-b", "-g", "-e", "-q", "-t", "-w", "-x", "-o", "-v",
}

// parseFlags populates Config fields from command-line flags.
//
//	-a string    HTTP bind address (e.g. ":8080")
//	-l string    public base URL used in download links
//	-d string    PostgreSQL DSN
//	-m string    master password
//	-i int       PBKDF2 iterations
//	-s string    storage backend, fs or s3
//	-f string    filesystem storage root
//	-u/-p string S3 user and password
//	-b string    S3 bucket
//	-g string    S3 region
//	-e string    S3 base endpoint
//	-q int       default per-account quota, bytes
//	-t duration  default download link lifetime
//	-w duration  expired file sweep interval
//	-x int       maximum folder tree depth
//	-o string    log format: json, text or zap
//	-v string    log level: debug, info, warn or error
//
// os.Args is filtered with flagx.FilterArgs first so that flags owned by other
// components do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.PublicBaseURL, "l", config.PublicBaseURL, "public base URL for download links")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MasterPassword, "m", config.MasterPassword, "master password")
	fs.IntVar(&config.KDFIterations, "i", config.KDFIterations, "PBKDF2 iterations")
	fs.StringVar(&config.StorageBackend, "s", config.StorageBackend, "storage backend (fs|s3)")
	fs.StringVar(&config.StoragePath, "f", config.StoragePath, "filesystem storage root")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.Int64Var(&config.DefaultLimitBytes, "q", config.DefaultLimitBytes, "default quota in bytes")
	fs.DurationVar(&config.LinkTTL, "t", config.LinkTTL, "download link lifetime")
	fs.DurationVar(&config.SweepInterval, "w", config.SweepInterval, "expired file sweep interval")
	fs.IntVar(&config.MaxFolderDepth, "x", config.MaxFolderDepth, "maximum folder depth")
	fs.StringVar(&config.LogFormat, "o", config.LogFormat, "log format (json|text|zap)")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
