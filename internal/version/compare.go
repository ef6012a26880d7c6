package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// CheckConfigCompatibility reports whether a config file written for
// configVersion can be read by a binary at binaryVersion.
//
// Rules:
//   - "main" on either side skips the check
//   - major versions must match
//   - the config minor must not be newer than the binary minor
//   - patch versions are ignored
//
// Examples:
//   - binary 1.2.0, config 1.2.0 -> OK
//   - binary 1.3.0, config 1.2.4 -> OK (older config)
//   - binary 1.2.0, config 1.3.0 -> ERROR (config needs a newer binary)
//   - binary 2.0.0, config 1.2.0 -> ERROR (major differs)
func CheckConfigCompatibility(binaryVersion, configVersion string) error {
	binaryVersion = strings.TrimPrefix(binaryVersion, "v")
	configVersion = strings.TrimPrefix(configVersion, "v")

	if binaryVersion == "main" || configVersion == "main" {
		return nil
	}

	binary, err := semver.NewVersion(binaryVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid binary version '%s'", binaryVersion)
	}

	config, err := semver.NewVersion(configVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid config version '%s'", configVersion)
	}

	if binary.Major() != config.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "major version mismatch: binary is %d.x.x but config is %d.x.x",
			binary.Major(), config.Major())
	}

	if config.Minor() > binary.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "config version %d.%d.x needs a newer binary than %d.%d.x",
			config.Major(), config.Minor(), binary.Major(), binary.Minor())
	}

	return nil
}
