package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
	"go.uber.org/multierr"

	"github.com/ByLCY/scriptorium/units"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	PageConfig struct {
		Width          units.Length `yaml:"width"`
		Height         units.Length `yaml:"height"`
		HeaderHeight   units.Length `yaml:"header_height"`
		DropCapPadding units.Length `yaml:"drop_cap_padding"`
	}

	FontConfig struct {
		Name string `yaml:"name" validate:"required"`
		Src  string `yaml:"src" validate:"required"`
	}

	StyleConfig struct {
		Font          string               `yaml:"font" validate:"required"`
		Size          units.Length         `yaml:"size"`
		LineHeight    units.LineHeightSpec `yaml:"line_height"`
		LetterSpacing units.Length         `yaml:"letter_spacing"`
		WordSpacing   units.Length         `yaml:"word_spacing"`
	}

	StylesConfig struct {
		Verse   StyleConfig `yaml:"verse"`
		Normal  StyleConfig `yaml:"normal"`
		Header  StyleConfig `yaml:"header"`
		Chapter StyleConfig `yaml:"chapter"`
	}

	LayoutConfig struct {
		Justify         bool         `yaml:"justify"`
		ParagraphIndent units.Length `yaml:"paragraph_indent"`
		PoetryIndent    units.Length `yaml:"poetry_indent"`
		RunningHeader   bool         `yaml:"running_header"`
	}

	OutputConfig struct {
		NameTemplate string `yaml:"name_template" validate:"required"`
		DebugJSON    bool   `yaml:"debug_json"`
	}

	Config struct {
		Version int           `yaml:"version" validate:"eq=1"`
		Page    PageConfig    `yaml:"page"`
		Fonts   []FontConfig  `yaml:"fonts" validate:"dive"`
		Styles  StylesConfig  `yaml:"styles"`
		Layout  LayoutConfig  `yaml:"layout"`
		Output  OutputConfig  `yaml:"output"`
		Logging LoggingConfig `yaml:"logging"`
	}
)

const (
	// NOTE: must match yaml field name above
	NameTemplateFieldName TemplateFieldName = "name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(NameTemplateFieldName)),
)

// ErrInvalid marks semantic configuration problems found after decoding.
var ErrInvalid = errors.New("invalid configuration")

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
		if err := cfg.check(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// check reports every semantic problem at once.
func (cfg *Config) check() error {
	var err error
	positive := func(field string, l units.Length) {
		if !(l.Value > 0) {
			err = multierr.Append(err, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, field, l))
		}
	}
	notNegative := func(field string, l units.Length) {
		if l.Value < 0 {
			err = multierr.Append(err, fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalid, field, l))
		}
	}

	positive("page.width", cfg.Page.Width)
	positive("page.height", cfg.Page.Height)
	notNegative("page.header_height", cfg.Page.HeaderHeight)
	notNegative("page.drop_cap_padding", cfg.Page.DropCapPadding)
	if cfg.Page.HeaderHeight.ToPT() >= cfg.Page.Height.ToPT() && cfg.Page.Height.Value > 0 {
		err = multierr.Append(err, fmt.Errorf("%w: page.header_height %s leaves no room for text", ErrInvalid, cfg.Page.HeaderHeight))
	}

	known := map[string]bool{}
	for _, f := range cfg.Fonts {
		if known[f.Name] {
			err = multierr.Append(err, fmt.Errorf("%w: font %q declared twice", ErrInvalid, f.Name))
		}
		known[f.Name] = true
	}

	for name, s := range cfg.Styles.byName() {
		field := "styles." + name
		positive(field+".size", s.Size)
		if s.LineHeight.Resolve(s.Size, units.UnitPT) <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: %s.line_height must be positive, got %s", ErrInvalid, field, s.LineHeight))
		}
		notNegative(field+".word_spacing", s.WordSpacing)
		if !known[s.Font] {
			err = multierr.Append(err, fmt.Errorf("%w: %s uses undeclared font %q", ErrInvalid, field, s.Font))
		}
	}

	notNegative("layout.paragraph_indent", cfg.Layout.ParagraphIndent)
	notNegative("layout.poetry_indent", cfg.Layout.PoetryIndent)
	return err
}

func (s *StylesConfig) byName() map[string]StyleConfig {
	return map[string]StyleConfig{
		"verse":   s.Verse,
		"normal":  s.Normal,
		"header":  s.Header,
		"chapter": s.Chapter,
	}
}
