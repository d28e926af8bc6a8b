package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Flags override file settings; the positional URL overrides both.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	positional := flagSet.Args()
	if len(positional) > 1 {
		return nil, fmt.Errorf("expected a single target URL, got %d arguments: %s", len(positional), strings.Join(positional, " "))
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := normalizeSettings(cfgViper.AllSettings())

	cfg := &Config{
		Total:            DefaultTotal,
		Concurrency:      DefaultConcurrency,
		Timeout:          DefaultTimeout,
		GracefulShutdown: DefaultGracefulShutdown,
		Headers:          map[string]string{},
		Arrival:          ArrivalConfig{Model: ArrivalModelUniform},
		Output:           OutputText,
		LogLevel:         "warn",
		LogFormat:        "console",
		Tracing:          TracingConfig{Protocol: "grpc", SampleRate: 1.0},
		ConfigFile:       configPath,
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if len(positional) == 1 {
		cfg.TargetURL = positional[0]
	}
	cfg.normalize()

	_, totalInFile := settings["requests"]
	if cfg.TimeLimit > 0 && !flagSet.Changed("requests") && !totalInFile {
		cfg.Total = TimeLimitTotal
	}

	return cfg, nil
}

// settingAliases maps alternate file keys onto the mapstructure tag they fill.
var settingAliases = map[string]string{
	"url":           "target",
	"total":         "requests",
	"time_limit":    "timelimit",
	"authorization": "auth",
	"arrival_model": "arrival",
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	arrivalType  = reflect.TypeOf(ArrivalConfig{})
)

// applyConfigSettings decodes config file settings into cfg through its
// mapstructure tags. Keys absent from settings keep their current values.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsDurationHook,
			arrivalModelHook,
		),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(normalizeSettings(settings)); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	cfg.normalize()
	return nil
}

// normalizeSettings folds dashes into underscores and resolves aliases for
// the top-level keys and the tracing and arrival sections. Header names are
// left untouched.
func normalizeSettings(settings map[string]interface{}) map[string]interface{} {
	out := normalizeKeys(settings)
	for alias, key := range settingAliases {
		if val, ok := out[alias]; ok {
			if _, set := out[key]; !set {
				out[key] = val
			}
			delete(out, alias)
		}
	}
	for _, section := range []string{"tracing", "arrival"} {
		if nested, ok := out[section].(map[string]interface{}); ok {
			out[section] = normalizeKeys(nested)
		}
	}
	return out
}

func normalizeKeys(settings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for key, val := range settings {
		out[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")] = val
	}
	return out
}

// secondsDurationHook lets durations in a file be Go duration strings or a
// bare number of seconds.
func secondsDurationHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	if d, ok := data.(time.Duration); ok {
		return d, nil
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.String:
		return parseSeconds(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Second)), nil
	default:
		return data, nil
	}
}

// arrivalModelHook accepts "arrival: poisson" as shorthand for the arrival section.
func arrivalModelHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if s, ok := data.(string); ok && to == arrivalType {
		return map[string]interface{}{"model": s}, nil
	}
	return data, nil
}
