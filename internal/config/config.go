package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` tag.
const EnvPrefix = "STREAMREC_"

// LoadConfig loads configuration with proper precedence: CLI args > env vars > config file.
// If cmd is provided, flags explicitly set via CLI will not be overwritten.
// A missing config file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	// Build set of flags explicitly changed via CLI
	changedFlags := make(map[string]bool)
	if cmd != nil {
		visit := func(f *pflag.Flag) {
			if f.Changed {
				changedFlags[f.Name] = true
			}
		}
		cmd.Flags().VisitAll(visit)
		cmd.PersistentFlags().VisitAll(visit)
	}

	var errs []error

	if configPath := configFilePath(v); configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("failed to read config: %w", err)
		default:
			var config map[string]any
			if err := toml.Unmarshal(data, &config); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}

			for i := 0; i < v.NumField(); i++ {
				fieldType := t.Field(i)
				if changedFlags[fieldNameToFlag(fieldType.Name)] {
					continue
				}
				if tomlPath := fieldType.Tag.Get("toml"); tomlPath != "" {
					if value := getNestedValue(config, tomlPath); value != nil {
						if err := setFieldValue(v.Field(i), value); err != nil {
							errs = append(errs, fmt.Errorf("%s: %w", tomlPath, err))
						}
					}
				}
			}
		}
	}

	// Apply environment variable overrides (skip CLI-set flags)
	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changedFlags[fieldNameToFlag(fieldType.Name)] {
			continue
		}
		if envKey := fieldType.Tag.Get("env"); envKey != "" {
			if envValue, ok := os.LookupEnv(EnvPrefix + envKey); ok && envValue != "" {
				if err := setFieldValueFromString(v.Field(i), envValue); err != nil {
					errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, envKey, err))
				}
			}
		}
	}

	return errors.Join(errs...)
}

// ApplyDefaults sets every field that has a `default` tag. Used where no
// humacli command fills defaults, e.g. cobra subcommands and tests.
func ApplyDefaults(opts any) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	var errs []error
	for i := 0; i < v.NumField(); i++ {
		def, ok := t.Field(i).Tag.Lookup("default")
		if !ok {
			continue
		}
		if err := setFieldValueFromString(v.Field(i), def); err != nil {
			errs = append(errs, fmt.Errorf("default for %s: %w", t.Field(i).Name, err))
		}
	}
	return errors.Join(errs...)
}

func configFilePath(v reflect.Value) string {
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "LoggingLevel" -> "logging-level", "LoggingAPI" -> "logging-api",
// "CaptureURLTemplate" -> "capture-url-template".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	var result []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				result = append(result, '-')
			}
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			return nil
		}
	}
	return nil
}

// setFieldValue sets a field from a decoded TOML value.
func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		switch i := value.(type) {
		case int64:
			field.SetInt(i)
		case int:
			field.SetInt(int64(i))
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		slice := make([]string, len(arr))
		for i, v := range arr {
			s, strOk := v.(string)
			if !strOk {
				return fmt.Errorf("expected string array element, got %T", v)
			}
			slice[i] = s
		}
		field.Set(reflect.ValueOf(slice))
	}
	return nil
}

// setFieldValueFromString sets a field value from string (for env vars and defaults).
func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Parse comma-separated values for env vars
			parts := strings.Split(value, ",")
			slice := make([]string, len(parts))
			for i, part := range parts {
				slice[i] = strings.TrimSpace(part)
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
	return nil
}
