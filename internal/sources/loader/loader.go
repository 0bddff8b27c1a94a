// Package loader reads the YAML seed-list file accepted by
// --seeds-file on the queue-processor and parallel-collector commands.
package loader

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNoSeeds indicates the file parsed but named no seed hosts.
var ErrNoSeeds = errors.New("loader: no seeds found in file")

// seedsFile mirrors the on-disk YAML shape:
//
//	seeds:
//	  - example.com
//	  - another.test
type seedsFile struct {
	Seeds []string `yaml:"seeds"`
}

// LoadSeedHosts reads path and returns the bare hostnames it lists,
// validated as syntactically plausible hosts. A missing file is not
// an error: it yields an empty slice, letting --seeds-file stay
// optional in scripts that don't always supply one.
func LoadSeedHosts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}

	var file seedsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", path, err)
	}

	if len(file.Seeds) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSeeds, path)
	}

	hosts := make([]string, 0, len(file.Seeds))
	for _, host := range file.Seeds {
		if err := validateHost(host); err != nil {
			return nil, fmt.Errorf("loader: %s: %w", path, err)
		}

		hosts = append(hosts, host)
	}

	return hosts, nil
}

// validateHost rejects entries that carry a scheme, path, or query --
// the seed list is raw hostnames, turned into root URLs by the caller.
func validateHost(host string) error {
	if host == "" {
		return errors.New("empty host entry")
	}

	parsed, err := url.Parse("https://" + host)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid host %q", host)
	}

	if parsed.Host != host {
		return fmt.Errorf("host %q must not include a scheme, path, or query", host)
	}

	return nil
}
