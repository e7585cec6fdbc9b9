package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides the location of the configuration file.
	EnvConfigPath = "SICKLY_CONFIG"

	defaultFileName = "config.ini"
	defaultStyle    = "pygments"
)

const (
	SectionUser   = "USER"
	SectionSickly = "SICKLY"
)

// STARTTLS policies accepted in SICKLY.STARTTLS.
const (
	StartTLSMandatory     = "mandatory"
	StartTLSOpportunistic = "opportunistic"
	StartTLSNone          = "none"
)

// requiredKeys lists, per section, the keys every configuration must define.
// Keys marked allowEmpty only need to be present.
var requiredKeys = []struct {
	section    string
	key        string
	allowEmpty bool
}{
	{section: SectionUser, key: "NAME"},
	{section: SectionUser, key: "EMAIL"},
	{section: SectionSickly, key: "MAIL_SERVER"},
	{section: SectionSickly, key: "PORT"},
	{section: SectionSickly, key: "USERNAME", allowEmpty: true},
	{section: SectionSickly, key: "PASSWORD", allowEmpty: true},
	{section: SectionSickly, key: "TEMPLATE"},
}

// envOverrides maps environment variables onto SICKLY keys.
var envOverrides = map[string]string{
	"SICKLY_MAIL_SERVER": "MAIL_SERVER",
	"SICKLY_PORT":        "PORT",
	"SICKLY_USERNAME":    "USERNAME",
	"SICKLY_PASSWORD":    "PASSWORD",
}

// Sections is the raw file content: section name -> key -> value, with
// section and key names upper-cased.
type Sections map[string]map[string]string

// Get returns the value of key in section and whether it is present.
func (s Sections) Get(section, key string) (string, bool) {
	values, ok := s[section]
	if !ok {
		return "", false
	}
	value, ok := values[key]
	return value, ok
}

// User identifies the person sending the notice.
type User struct {
	Name  string
	Email string
}

// Mail holds the mail-submission settings.
type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS string
}

// Config is the validated configuration used by the rest of the application.
type Config struct {
	// Path is the file the configuration was loaded from.
	Path string
	User User
	Mail Mail
	// Template is the default template path; a relative TEMPLATE is resolved
	// against the directory of the configuration file.
	Template string
	// Style names the syntax highlighting style inlined into HTML mail.
	Style string
}

// DefaultPath returns SICKLY_CONFIG when set, otherwise config.ini next to
// the running executable.
func DefaultPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), defaultFileName), nil
}

// Load reads the file at path, applies environment overrides and validates
// the result.
func Load(path string) (Config, error) {
	sections, err := loadFromFile(path)
	if err != nil {
		return Config{}, err
	}

	applyEnvConfig(sections)

	return fromSections(path, sections)
}

// loadFromFile picks a decoder from the file extension.
func loadFromFile(path string) (Sections, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return loadINI(path)
	}
}

func loadINI(path string) (Sections, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read INI config: %w", err)
	}

	sections := make(Sections)
	for name, raw := range v.AllSettings() {
		values, ok := raw.(map[string]any)
		if !ok {
			// keys outside of any section are ignored
			continue
		}
		sections[strings.ToUpper(name)] = normalizeValues(values)
	}
	return sections, nil
}

func loadYAML(path string) (Sections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	sections := make(Sections, len(raw))
	for name, values := range raw {
		sections[strings.ToUpper(name)] = normalizeValues(values)
	}
	return sections, nil
}

func normalizeValues(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		if value == nil {
			out[strings.ToUpper(key)] = ""
			continue
		}
		out[strings.ToUpper(key)] = strings.TrimSpace(fmt.Sprint(value))
	}
	return out
}

// applyEnvConfig overrides SICKLY keys from the environment. Sections absent
// from the file stay absent so the missing-section diagnostic is preserved.
func applyEnvConfig(sections Sections) {
	sickly, ok := sections[SectionSickly]
	if !ok {
		return
	}
	for env, key := range envOverrides {
		if value, set := os.LookupEnv(env); set {
			sickly[key] = strings.TrimSpace(value)
		}
	}
}

// fromSections validates the raw sections and converts them into a Config.
func fromSections(path string, sections Sections) (Config, error) {
	for _, section := range []string{SectionUser, SectionSickly} {
		if _, ok := sections[section]; !ok {
			return Config{}, fmt.Errorf("%w: %s", ErrMissingSection, section)
		}
	}

	for _, req := range requiredKeys {
		value, ok := sections.Get(req.section, req.key)
		if !ok || (!req.allowEmpty && value == "") {
			return Config{}, fmt.Errorf("%w: %s.%s", ErrMissingKey, req.section, req.key)
		}
	}

	get := func(section, key string) string {
		value, _ := sections.Get(section, key)
		return value
	}

	port, err := strconv.Atoi(get(SectionSickly, "PORT"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("%w: SICKLY.PORT must be between 1 and 65535, got %q", ErrInvalidValue, get(SectionSickly, "PORT"))
	}

	startTLS := strings.ToLower(get(SectionSickly, "STARTTLS"))
	switch startTLS {
	case "":
		startTLS = StartTLSMandatory
	case StartTLSMandatory, StartTLSOpportunistic, StartTLSNone:
	default:
		return Config{}, fmt.Errorf("%w: SICKLY.STARTTLS must be one of %s, %s, %s, got %q",
			ErrInvalidValue, StartTLSMandatory, StartTLSOpportunistic, StartTLSNone, startTLS)
	}

	style := get(SectionSickly, "STYLE")
	if style == "" {
		style = defaultStyle
	}

	template := get(SectionSickly, "TEMPLATE")
	if !filepath.IsAbs(template) {
		template = filepath.Join(filepath.Dir(path), template)
	}

	return Config{
		Path: path,
		User: User{
			Name:  get(SectionUser, "NAME"),
			Email: get(SectionUser, "EMAIL"),
		},
		Mail: Mail{
			Host:     get(SectionSickly, "MAIL_SERVER"),
			Port:     port,
			Username: get(SectionSickly, "USERNAME"),
			Password: get(SectionSickly, "PASSWORD"),
			StartTLS: startTLS,
		},
		Template: template,
		Style:    style,
	}, nil
}
