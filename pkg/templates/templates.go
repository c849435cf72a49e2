// Package templates renders the starter files written by 'pushgate init':
// a config file and a systemd unit. Operators can override the built-in
// templates by dropping replacement files into a templates directory.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Template names
const (
	ConfigFile     = "pushgate-config"
	SystemdService = "systemd-service"
)

const configFileTemplate = `# pushgate configuration
server:
  host: {{.Host}}
  port: {{.Port}}

webhook:
  # Shared secret for GitHub webhook signatures. The same value must be
  # set on the GitHub side. Generate a fresh one with 'pushgate secret'.
  secret: "{{.Secret}}"

deploy:
  # Command to run when an authenticated push arrives. A plain string is
  # split with shell quoting rules; a YAML list is used verbatim.
  command: "{{.Command}}"
  # Working directory for the deploy command (empty means inherited).
  dir: ""

log:
  file: "{{.LogFile}}"

ledger:
  # Delivery IDs already deployed are remembered here so GitHub
  # redeliveries do not deploy twice.
  path: "{{.LedgerPath}}"
`

const systemdServiceTemplate = `[Unit]
Description=Pushgate webhook deployment gateway
After=network.target

[Service]
Type=simple
User={{.User}}
WorkingDirectory={{.WorkingDir}}
ExecStart={{.BinaryPath}} serve --config {{.ConfigPath}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// ConfigData holds the variables for the config file template.
type ConfigData struct {
	Host       string
	Port       int
	Secret     string
	Command    string
	LogFile    string
	LedgerPath string
}

// UnitData holds the variables for the systemd unit template.
type UnitData struct {
	User       string
	WorkingDir string
	BinaryPath string
	ConfigPath string
}

var builtinTemplates = map[string]string{
	ConfigFile:     configFileTemplate,
	SystemdService: systemdServiceTemplate,
}

// GetTemplatePaths returns the override search paths for a template.
func GetTemplatePaths(templateName string) []string {
	filename := templateName + ".template"
	return []string{
		filepath.Join(".", "templates", filename),
		filepath.Join("/etc", "pushgate", "templates", filename),
	}
}

// GetTemplate returns the raw template content by name. Filesystem
// overrides win over the built-in content:
// 1. ./templates/<name>.template
// 2. /etc/pushgate/templates/<name>.template
// 3. built-in default
func GetTemplate(name string) (string, error) {
	builtin, ok := builtinTemplates[name]
	if !ok {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	for _, path := range GetTemplatePaths(name) {
		if content, err := os.ReadFile(path); err == nil {
			return string(content), nil
		}
	}

	return builtin, nil
}

// Render renders a named template with the given data using Go's
// text/template syntax.
func Render(templateName string, data interface{}) (string, error) {
	tmplContent, err := GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(templateName).Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// RenderConfigFile renders the starter config file.
func RenderConfigFile(data ConfigData) (string, error) {
	return Render(ConfigFile, data)
}

// RenderSystemdService renders the systemd unit file.
func RenderSystemdService(data UnitData) (string, error) {
	return Render(SystemdService, data)
}

// ListTemplates returns all available template names.
func ListTemplates() []string {
	return []string{
		ConfigFile,
		SystemdService,
	}
}

// ValidateTemplate checks if a template name is valid.
func ValidateTemplate(name string) bool {
	_, ok := builtinTemplates[name]
	return ok
}
