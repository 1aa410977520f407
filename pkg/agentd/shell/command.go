package shell

import (
	"fmt"

	"github.com/aymerick/raymond"
)

const DefaultCommandTemplate = "chmod +x {{script}} && {{script}} {{runtime}} {{packageManager}} {{usage}}"

// InstallCommand is the command line that runs the install script on the instance.
type InstallCommand struct {
	template       *raymond.Template
	Runtime        string
	PackageManager string
	Usage          string
}

func NewInstallCommand(template, runtime, packageManager, usage string) (*InstallCommand, error) {
	if len(template) == 0 {
		template = DefaultCommandTemplate
	}
	parsed, err := raymond.Parse(template)
	if err != nil {
		return nil, fmt.Errorf("parse install command template: %w", err)
	}
	return &InstallCommand{
		template:       parsed,
		Runtime:        runtime,
		PackageManager: packageManager,
		Usage:          usage,
	}, nil
}

func (c *InstallCommand) Render(script string) (string, error) {
	output, err := c.template.Exec(map[string]string{
		"script":         script,
		"runtime":        c.Runtime,
		"packageManager": c.PackageManager,
		"usage":          c.Usage,
	})
	if err != nil {
		return "", fmt.Errorf("render install command: %w", err)
	}
	return output, nil
}
