package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// LookupFunc reads one environment variable.
type LookupFunc func(name string) (string, bool)

// LookupEnv reads the process environment.
func LookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}

var durationType = reflect.TypeOf(Duration(0))

// EnvNames returns every recognised environment variable, in section order.
func EnvNames() []string {
	var names []string
	eachSetting(reflect.ValueOf(&Config{}).Elem(), func(name, _ string, _ reflect.Value) {
		names = append(names, name)
	})
	return names
}

// ApplyEnv overlays environment overrides onto cfg. Each setting is read from
// EnvPrefix + upper(section) + "_" + upper(key). Empty values are applied
// like any other.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	var firstErr error
	eachSetting(reflect.ValueOf(cfg).Elem(), func(name, path string, field reflect.Value) {
		raw, ok := lookup(name)
		if !ok || firstErr != nil {
			return
		}
		if err := setField(field, raw); err != nil {
			firstErr = fmt.Errorf("%s (%s): %w", name, path, err)
		}
	})
	return firstErr
}

// eachSetting visits every leaf field of the two-level Config struct.
func eachSetting(v reflect.Value, fn func(env, path string, field reflect.Value)) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		section := tomlName(t.Field(i))
		sv := v.Field(i)
		st := sv.Type()
		for j := 0; j < st.NumField(); j++ {
			key := tomlName(st.Field(j))
			env := EnvPrefix + strings.ToUpper(section) + "_" + strings.ToUpper(key)
			fn(env, section+"."+key, sv.Field(j))
		}
	}
}

func tomlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		var d Duration
		if err := d.UnmarshalText([]byte(raw)); err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported setting type %s", field.Type())
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
