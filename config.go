package examdump

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the examdump engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.examdump/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "examdump". The file will be <DBName>.db inside the
	// storage directory (~/.examdump/ or working dir).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.examdump/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// ImageDir is the directory extracted image files are written to.
	// Empty means images are not written to disk; records still carry
	// their reference metadata.
	ImageDir string `json:"image_dir" yaml:"image_dir"`

	// InlineImages embeds image payloads base64-encoded in the records
	// instead of referencing files.
	InlineImages bool `json:"inline_images" yaml:"inline_images"`

	// SkipStore disables persistence entirely; extractions run purely
	// in memory and Search/ListExtractions are unavailable.
	SkipStore bool `json:"skip_store" yaml:"skip_store"`
}

// DefaultConfig returns a Config with sensible defaults.
// Database is stored in ~/.examdump/examdump.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "examdump",
		StorageDir: "home",
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "examdump"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".examdump")
		return filepath.Join(dir, name+".db")
	}
}
