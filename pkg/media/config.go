package media

import (
	"errors"
	"fmt"
	"strings"
)

// RenameStrategy selects how uploaded filenames are turned into stored names.
type RenameStrategy string

const (
	// RenameTransliterate lowercases, folds to ASCII and strips unsafe characters.
	RenameTransliterate RenameStrategy = "transliterate"
	// RenameUnique prefixes the name with a time and entropy based hash.
	RenameUnique RenameStrategy = "unique"
	// RenameKeep stores the name as uploaded.
	RenameKeep RenameStrategy = "keep"
)

// ParseRenameStrategy accepts the strategy names and the legacy "nothing" alias for keep.
func ParseRenameStrategy(s string) (RenameStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(RenameTransliterate):
		return RenameTransliterate, nil
	case string(RenameUnique):
		return RenameUnique, nil
	case string(RenameKeep), "nothing":
		return RenameKeep, nil
	default:
		return "", fmt.Errorf("%w: unknown rename strategy %q", ErrInvalidConfig, s)
	}
}

const (
	DefaultFilesDirectory = "uploads"
	DefaultGroup          = "default"
	DefaultMaxNameProbes  = 10000
)

// Config controls the directory layout and naming of stored media.
// Values are read once at startup, typically through config.Load.
type Config struct {
	// PublicPath is the web root the files directory lives in. It is the base
	// directory of a local blob backend and is not used for key computation.
	PublicPath string `env:"MEDIA_PUBLIC_PATH" envDefault:"./public"`
	// FilesDirectory is prefixed to every blob path and to public URLs.
	FilesDirectory string `env:"MEDIA_FILES_DIRECTORY" envDefault:"uploads"`
	// SubDirectories stores files under a directory named after the owner type.
	SubDirectories bool `env:"MEDIA_SUB_DIRECTORIES" envDefault:"true"`
	// SubDirectoriesByID adds an owner id directory below the type directory.
	// It takes precedence over SubDirectories.
	SubDirectoriesByID bool           `env:"MEDIA_SUB_DIRECTORIES_BY_ID" envDefault:"false"`
	Rename             RenameStrategy `env:"MEDIA_RENAME" envDefault:"transliterate"`
	DefaultGroup       string         `env:"MEDIA_DEFAULT_GROUP" envDefault:"default"`
	MaxNameProbes      int            `env:"MEDIA_MAX_NAME_PROBES" envDefault:"10000"`
	MaxFileSize        int64          `env:"MEDIA_MAX_FILE_SIZE" envDefault:"0"` // 0 disables the limit
	AllowedMIMETypes   []string       `env:"MEDIA_ALLOWED_MIME_TYPES" envSeparator:","`
}

// DefaultConfig mirrors the env defaults for callers that build Config in code.
func DefaultConfig() Config {
	return Config{
		PublicPath:     "./public",
		FilesDirectory: DefaultFilesDirectory,
		SubDirectories: true,
		Rename:         RenameTransliterate,
		DefaultGroup:   DefaultGroup,
		MaxNameProbes:  DefaultMaxNameProbes,
	}
}

// Validate normalizes the config in place and reports unusable values.
func (c *Config) Validate() error {
	rename, err := ParseRenameStrategy(string(c.Rename))
	if err != nil {
		return err
	}
	c.Rename = rename

	c.FilesDirectory = strings.Trim(strings.ReplaceAll(c.FilesDirectory, "\\", "/"), "/")
	if strings.Contains(c.FilesDirectory, "..") {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("files directory %q escapes the public path", c.FilesDirectory))
	}

	if c.DefaultGroup == "" {
		c.DefaultGroup = DefaultGroup
	}
	if c.MaxNameProbes <= 0 {
		c.MaxNameProbes = DefaultMaxNameProbes
	}
	if c.MaxFileSize < 0 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("negative max file size %d", c.MaxFileSize))
	}

	return nil
}
