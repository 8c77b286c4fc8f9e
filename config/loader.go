package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/deicod/svcerr/tokensource"
	"gopkg.in/yaml.v3"
)

// settings is the serializable subset of Config shared by file and env sources.
type settings struct {
	Issuer                 string                 `json:"issuer" yaml:"issuer"`
	Audiences              []string               `json:"audiences" yaml:"audiences"`
	TokenTypes             []string               `json:"token_types" yaml:"token_types"`
	AuthorizedParties      []string               `json:"authorized_parties" yaml:"authorized_parties"`
	ClockSkew              string                 `json:"clock_skew" yaml:"clock_skew"`
	AllowAnonymousRequests *bool                  `json:"allow_anonymous_requests" yaml:"allow_anonymous_requests"`
	TokenSources           tokenSourceDefinitions `json:"token_sources" yaml:"token_sources"`
}

// tokenSourceDefinitions accepts either a list of definitions or a descriptor string.
type tokenSourceDefinitions []tokensource.Definition

func (t *tokenSourceDefinitions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	switch data[0] {
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		return t.parse(raw)
	case '[':
		var defs []tokensource.Definition
		if err := json.Unmarshal(data, &defs); err != nil {
			return err
		}
		*t = defs
		return nil
	default:
		return fmt.Errorf("config: token_sources must be string or array, got %s", string(data))
	}
}

func (t *tokenSourceDefinitions) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		return t.parse(raw)
	case yaml.SequenceNode:
		var defs []tokensource.Definition
		if err := value.Decode(&defs); err != nil {
			return err
		}
		*t = defs
		return nil
	default:
		return fmt.Errorf("config: token_sources must be a sequence or string")
	}
}

func (t *tokenSourceDefinitions) parse(raw string) error {
	defs, err := tokensource.ParseList(raw)
	if err != nil {
		return err
	}
	*t = defs
	return nil
}

// FromFile loads configuration from a JSON or YAML file.
func FromFile(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open file: %w", err)
	}
	defer file.Close()

	s, err := decode(file, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return Config{}, err
	}
	return s.toConfig()
}

func decode(r io.Reader, ext string) (settings, error) {
	var s settings
	switch ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && err != io.EOF {
			return settings{}, fmt.Errorf("config: decode yaml: %w", err)
		}
	case ".json", "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil && err != io.EOF {
			return settings{}, fmt.Errorf("config: decode json: %w", err)
		}
	default:
		return settings{}, fmt.Errorf("config: unsupported file extension %q", ext)
	}
	return s, nil
}

// FromEnv constructs configuration from environment variables named <prefix>_<KEY>.
func FromEnv(prefix string) (Config, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	lookup := func(key string) (string, bool) {
		v, ok := os.LookupEnv(prefix + key)
		return strings.TrimSpace(v), ok
	}

	var s settings
	if v, ok := lookup("ISSUER"); ok {
		s.Issuer = v
	}
	if v, ok := lookup("AUDIENCES"); ok {
		s.Audiences = splitAndTrim(v)
	}
	if v, ok := lookup("TOKEN_TYPES"); ok {
		s.TokenTypes = splitAndTrim(v)
	}
	if v, ok := lookup("AUTHORIZED_PARTIES"); ok {
		s.AuthorizedParties = splitAndTrim(v)
	}
	if v, ok := lookup("CLOCK_SKEW"); ok {
		s.ClockSkew = v
	}
	if v, ok := lookup("ALLOW_ANONYMOUS_REQUESTS"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %sALLOW_ANONYMOUS_REQUESTS: %w", prefix, err)
		}
		s.AllowAnonymousRequests = &parsed
	}
	if v, ok := lookup("TOKEN_SOURCES"); ok {
		if err := s.TokenSources.parse(v); err != nil {
			return Config{}, err
		}
	}
	return s.toConfig()
}

func (s settings) toConfig() (Config, error) {
	cfg := Config{
		Issuer:            strings.TrimSpace(s.Issuer),
		Audiences:         cloneStringSlice(s.Audiences),
		TokenTypes:        cloneStringSlice(s.TokenTypes),
		AuthorizedParties: cloneStringSlice(s.AuthorizedParties),
	}
	if s.ClockSkew != "" {
		d, err := time.ParseDuration(s.ClockSkew)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse clock_skew: %w", err)
		}
		cfg.ClockSkew = d
	}
	if s.AllowAnonymousRequests != nil {
		cfg.SetAllowAnonymousRequests(*s.AllowAnonymousRequests)
	}
	for _, def := range s.TokenSources {
		src, err := def.Build()
		if err != nil {
			return Config{}, err
		}
		cfg.TokenSources = append(cfg.TokenSources, src)
	}
	return cfg, nil
}

// Merge applies overrides to a base configuration. Zero-value fields in overrides are ignored;
// claims validators accumulate.
func Merge(base Config, overrides ...Config) Config {
	result := base
	for _, o := range overrides {
		if o.Issuer != "" {
			result.Issuer = o.Issuer
		}
		if len(o.Audiences) > 0 {
			result.Audiences = cloneStringSlice(o.Audiences)
		}
		if len(o.TokenTypes) > 0 {
			result.TokenTypes = cloneStringSlice(o.TokenTypes)
		}
		if len(o.AuthorizedParties) > 0 {
			result.AuthorizedParties = cloneStringSlice(o.AuthorizedParties)
		}
		if o.HTTPClient != nil {
			result.HTTPClient = o.HTTPClient
		}
		if o.ClockSkew != 0 {
			result.ClockSkew = o.ClockSkew
		}
		if o.allowAnonymousRequestsConfigured {
			result.SetAllowAnonymousRequests(o.AllowAnonymousRequests)
		}
		if len(o.TokenSources) > 0 {
			result.TokenSources = append([]tokensource.Source(nil), o.TokenSources...)
		}
		if len(o.ClaimsValidators) > 0 {
			result.ClaimsValidators = append(result.ClaimsValidators, o.ClaimsValidators...)
		}
		if o.Metrics != nil {
			result.Metrics = o.Metrics
		}
		if o.Responder.Logger != nil {
			result.Responder.Logger = o.Responder.Logger
		}
		if o.Responder.Recorder != nil {
			result.Responder.Recorder = o.Responder.Recorder
		}
		if o.Now != nil {
			result.Now = o.Now
		}
	}
	return result
}

// LoadOptions configures Load.
type LoadOptions struct {
	Base      Config
	File      string
	EnvPrefix string
}

// Load composes configuration from the base, then the file, then the environment.
func Load(opts LoadOptions) (Config, error) {
	cfg := opts.Base
	if opts.File != "" {
		fileCfg, err := FromFile(opts.File)
		if err != nil {
			return Config{}, err
		}
		cfg = Merge(cfg, fileCfg)
	}
	if opts.EnvPrefix != "" {
		envCfg, err := FromEnv(opts.EnvPrefix)
		if err != nil {
			return Config{}, err
		}
		cfg = Merge(cfg, envCfg)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func cloneStringSlice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func splitAndTrim(raw string) []string {
	var result []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
