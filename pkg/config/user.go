package config

import (
	homedir "github.com/mitchellh/go-homedir"

	"github.com/mirrormk/mirrormk/pkg/errors"
)

const (
	// UserConfigPath is the default path to the mirrormk user config.
	UserConfigPath = "~/.mirrormk.yaml"

	// InitialUserConfigVersion is the first version of the mirrormk
	// user config. Config files that do not specify a version
	// will default to this version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the
	// mirrormk user config of the current mirrormk binary.
	SupportedUserConfigVersion = "v1alpha1"
)

// User contains per-user defaults that apply to every mirror pair synced
// from this machine.
type User struct {
	Version string `json:"version,omitempty"`

	// Workers is the default number of sync workers per pass. Zero means
	// one worker per CPU.
	Workers int `json:"workers,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path. A missing
// config file isn't an error: every field just keeps its default.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return User{Version: InitialUserConfigVersion}, nil
		}
		return User{}, errors.WithContext(err, "parse")
	}

	if config.Workers < 0 {
		return User{}, errors.NewFriendlyError(
			"Invalid workers setting %d in %q. It must be zero or positive.",
			config.Workers, path)
	}
	return config, nil
}

// GetUserConfigPath returns the path to the user's global mirrormk
// configuration. This path is expanded, so it can be directly passed to file
// operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
