package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".news-digest"

const minExcerptChars = 200

// Embedded configuration files
//
//go:embed config/researcher-system-prompt.md
var defaultResearcherSystemPrompt string

//go:embed config/editor-system-prompt.md
var defaultEditorSystemPrompt string

//go:embed config/digest-output-schema.json
var defaultDigestSchema string

//go:embed config/settings.yaml
var defaultSettingsYAML string

//go:embed config/digest-template.md
var defaultTemplate string

//go:embed config/sources.yaml
var defaultSourcesYAML string

// ConfigOverrides allows overriding embedded defaults with file paths
type ConfigOverrides struct {
	ResearcherPromptPath *string
	EditorPromptPath     *string
	DigestSchemaPath     *string
	TemplatePath         *string
	SettingsPath         *string
}

// AgentSettings holds the model parameters of one agent
type AgentSettings struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// YouTubeSettings configures the transcript service used for video sources
type YouTubeSettings struct {
	TranscriptAPIKey string `yaml:"transcript_api_key"`
	TranscriptAPIURL string `yaml:"transcript_api_url"`
	Retries          int    `yaml:"retries"`
}

// NewsAPISettings configures the NewsAPI search used by query sources
type NewsAPISettings struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	Provider        string        `yaml:"provider"`
	BaseURL         string        `yaml:"base_url"`
	OutputDirectory string        `yaml:"output_directory"`
	ExcerptChars    int           `yaml:"excerpt_chars"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RenderHTML      bool          `yaml:"render_html"`
	Agents          struct {
		Researcher AgentSettings `yaml:"researcher"`
		Editor     AgentSettings `yaml:"editor"`
	} `yaml:"agents"`
	YouTube YouTubeSettings `yaml:"youtube"`
	NewsAPI NewsAPISettings `yaml:"newsapi"`
}

// Prompts holds the prompt texts and output schema used by the agents
type Prompts struct {
	ResearcherSystem string
	EditorSystem     string
	DigestSchema     string
}

// defaultSettings returns the embedded settings
func defaultSettings() *Settings {
	var settings Settings
	if err := yaml.Unmarshal([]byte(defaultSettingsYAML), &settings); err != nil {
		panic(fmt.Sprintf("embedded settings.yaml is invalid: %v", err))
	}
	return &settings
}

// LoadSettings loads settings from an explicit path, or from the default
// config directory with a fallback to the embedded defaults.
func LoadSettings(overrides *ConfigOverrides) (*Settings, error) {
	if overrides != nil && overrides.SettingsPath != nil {
		settings, err := loadSettingsRequired(*overrides.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("settings file %s: %w", *overrides.SettingsPath, err)
		}
		return settings, nil
	}
	return loadSettings(filepath.Join(defaultConfigDir, "settings.yaml"))
}

// loadSettings loads settings from YAML file with fallback to defaults
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if os.IsNotExist(err) {
		return defaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
	}
	return parseSettings(data)
}

// loadSettingsRequired loads settings from YAML file, failing if file doesn't exist
func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, err
	}
	return parseSettings(data)
}

// parseSettings decodes YAML over the embedded defaults, so omitted keys keep
// their default values.
func parseSettings(data []byte) (*Settings, error) {
	settings := defaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}

	settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
	switch settings.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("unknown provider %q (want %s or %s)", settings.Provider, ProviderAnthropic, ProviderOpenAI)
	}

	if settings.ExcerptChars < minExcerptChars {
		slog.Warn("excerpt_chars below minimum, using minimum", "excerpt_chars", settings.ExcerptChars, "minimum", minExcerptChars)
		settings.ExcerptChars = minExcerptChars
	}
	if settings.Agents.Researcher.Model == "" || settings.Agents.Editor.Model == "" {
		return nil, fmt.Errorf("agents.researcher.model and agents.editor.model are required")
	}

	return settings, nil
}

// LoadPrompts returns the agent prompts and digest schema (from override files or embedded)
func LoadPrompts(overrides *ConfigOverrides) (*Prompts, error) {
	if overrides == nil {
		overrides = &ConfigOverrides{}
	}
	researcher, err := readOverride(overrides.ResearcherPromptPath, defaultResearcherSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("loading researcher prompt: %w", err)
	}
	editor, err := readOverride(overrides.EditorPromptPath, defaultEditorSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("loading editor prompt: %w", err)
	}
	schema, err := readOverride(overrides.DigestSchemaPath, defaultDigestSchema)
	if err != nil {
		return nil, fmt.Errorf("loading digest schema: %w", err)
	}
	if err := validateDigestSchema(schema); err != nil {
		return nil, fmt.Errorf("digest schema: %w", err)
	}
	if !strings.Contains(editor, approvalToken) {
		return nil, fmt.Errorf("editor prompt must instruct the model to reply %s", approvalToken)
	}

	return &Prompts{
		ResearcherSystem: researcher,
		EditorSystem:     editor,
		DigestSchema:     schema,
	}, nil
}

// digestFields are the fields of SynthesizedStory. Drafts are decoded
// strictly, so a schema must describe exactly these, all required.
var digestFields = []string{"title", "summary", "source_article_ids"}

// validateDigestSchema checks that a digest schema matches the story the
// researcher's output is decoded into
func validateDigestSchema(schema string) error {
	var doc struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal([]byte(schema), &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if doc.Type != "object" {
		return fmt.Errorf("type must be \"object\", got %q", doc.Type)
	}

	for name := range doc.Properties {
		if !slices.Contains(digestFields, name) {
			return fmt.Errorf("unsupported property %q (allowed: %s)", name, strings.Join(digestFields, ", "))
		}
	}
	for _, name := range digestFields {
		if _, ok := doc.Properties[name]; !ok {
			return fmt.Errorf("missing property %q", name)
		}
		if !slices.Contains(doc.Required, name) {
			return fmt.Errorf("property %q must be required", name)
		}
	}
	return nil
}

// LoadTemplate returns the digest template (from override file or embedded)
func LoadTemplate(overrides *ConfigOverrides) (string, error) {
	if overrides == nil {
		overrides = &ConfigOverrides{}
	}
	return readOverride(overrides.TemplatePath, defaultTemplate)
}

// readOverride reads path when set; an explicitly named file must exist
func readOverride(path *string, fallback string) (string, error) {
	if path == nil {
		return strings.TrimSpace(fallback), nil
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsFile := filepath.Join(configDir, "settings.yaml")
	if _, err := os.Stat(settingsFile); os.IsNotExist(err) {
		if err := os.WriteFile(settingsFile, []byte(defaultSettingsYAML), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}
