package config

import (
	"fmt"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/mirrormk/mirrormk/pkg/errors"
)

func TestParseUser(t *testing.T) {
	out := ".mirrormk.yaml"
	userEmptyVersion := User{
		Workers: 4,
	}
	userInitialVersion := User{
		Version: InitialUserConfigVersion,
		Workers: 4,
	}
	userCorrectVersion := User{
		Version: SupportedUserConfigVersion,
		Workers: 4,
	}
	userIncorrectVersion := User{
		Version: "incorrect_version",
		Workers: 4,
	}
	userEmptyVersionString, err := yaml.Marshal(userEmptyVersion)
	assert.NoError(t, err)
	userCorrectVersionString, err := yaml.Marshal(userCorrectVersion)
	assert.NoError(t, err)
	userIncorrectVersionString, err := yaml.Marshal(userIncorrectVersion)
	assert.NoError(t, err)

	tests := []struct {
		input     []byte
		expConfig User
		expError  error
	}{
		{
			input:     userEmptyVersionString,
			expConfig: userInitialVersion,
			expError:  nil,
		},
		{
			input:     userCorrectVersionString,
			expConfig: userCorrectVersion,
			expError:  nil,
		},
		{
			input:     userIncorrectVersionString,
			expConfig: User{},
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedUserConfigVersion,
				actual: userIncorrectVersion.Version,
			}, "parse"),
		},
		{
			input: []byte(fmt.Sprintf(
				"version: %s\nextra: fields", SupportedUserConfigVersion)),
			expError: errors.WithContext(
				errors.NewFriendlyError(parseConfigErrTemplate, out,
					errors.New("error unmarshaling JSON: while decoding JSON: "+
						`json: unknown field "extra"`)),
				"parse"),
		},
		{
			input: []byte(`
version: incorrect_version
extra: fields
`),
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedUserConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
		{
			input:     []byte("workers: -2\n"),
			expConfig: User{},
			expError: errors.NewFriendlyError(
				"Invalid workers setting -2 in %q. It must be zero or positive.", out),
		},
	}

	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return out, nil
	}
	for _, test := range tests {
		err := afero.WriteFile(fs, out, test.input, 0644)
		assert.NoError(t, err)
		config, err := ParseUser()
		assert.Equal(t, test.expConfig, config)
		assert.Equal(t, test.expError, err)
	}
}

func TestParseUserMissingFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return ".mirrormk.yaml", nil
	}

	config, err := ParseUser()
	assert.NoError(t, err)
	assert.Equal(t, User{Version: InitialUserConfigVersion}, config)
}
