package marketplace

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

type targetFile struct {
	Targets []Target `json:"targets"`
}

// LoadTargets reads a YAML file of compute nodes:
//
//	targets:
//	  - name: gpu-test-02
//	    url: https://gpu-test-02.nergame.app
//	    hash: e9423d9f...
//	    receiver: 0xA07B...
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	file := &targetFile{}
	err = yaml.Unmarshal(data, file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, target := range file.Targets {
		if err := target.Validate(); err != nil {
			return nil, fmt.Errorf("%s: target %d: %w", path, i, err)
		}
	}

	return file.Targets, nil
}

// SelectTarget returns the target with the given name, or the first target when name is empty.
func SelectTarget(targets []Target, name string) (Target, error) {
	if len(targets) == 0 {
		return Target{}, fmt.Errorf("no compute node targets configured")
	}
	if len(name) == 0 {
		return targets[0], nil
	}
	for _, target := range targets {
		if target.Name == name {
			return target, nil
		}
	}
	return Target{}, fmt.Errorf("compute node target '%s' not found", name)
}

func (t Target) Validate() error {
	switch {
	case len(t.URL) == 0:
		return fmt.Errorf("url is required")
	case len(t.Hash) == 0:
		return fmt.Errorf("hash is required")
	case len(t.Receiver) == 0:
		return fmt.Errorf("receiver is required")
	}
	return nil
}
