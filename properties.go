package subsys

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Properties is a flat key/value configuration layer. Keys are dotted and
// case-insensitive; every method that builds Properties stores them
// lower-cased. Treat a Properties value received from elsewhere as read-only:
// Overlay and Clone return new values.
type Properties map[string]string

func normalizeKey(key string) string {
	return strings.ToLower(key)
}

// Clone returns a copy with normalized keys
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[normalizeKey(k)] = v
	}
	return out
}

// Overlay returns a new Properties holding p with every key of layer
// written over it. Neither p nor layer is modified.
func (p Properties) Overlay(layer Properties) Properties {
	out := p.Clone()
	for k, v := range layer {
		out[normalizeKey(k)] = v
	}
	return out
}

// Get returns the raw value for key
func (p Properties) Get(key string) (string, bool) {
	if v, ok := p[normalizeKey(key)]; ok {
		return v, true
	}
	v, ok := p[key]
	return v, ok
}

// GetString returns the value for key or def when absent
func (p Properties) GetString(key, def string) string {
	if v, ok := p.Get(key); ok {
		return v
	}
	return def
}

// GetInt returns the value for key as an int, def when absent
func (p Properties) GetInt(key string, def int) (int, error) {
	v, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	n, err := cast.ToIntE(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("property %s: %w", key, err)
	}
	return n, nil
}

// GetBool returns the value for key as a bool, def when absent
func (p Properties) GetBool(key string, def bool) (bool, error) {
	v, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("property %s: %w", key, err)
	}
	return b, nil
}

// GetDuration returns the value for key as a duration, def when absent.
// Bare integers are read as nanoseconds, as cast does.
func (p Properties) GetDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	d, err := cast.ToDurationE(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("property %s: %w", key, err)
	}
	return d, nil
}

// GetFields returns the whitespace-separated fields of the value for key
func (p Properties) GetFields(key string) []string {
	v, _ := p.Get(key)
	return strings.Fields(v)
}

// Keys returns the keys in sorted order
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithPrefix returns the entries whose key starts with prefix, with the
// prefix removed from the returned keys
func (p Properties) WithPrefix(prefix string) Properties {
	prefix = normalizeKey(prefix)
	out := make(Properties)
	for k, v := range p {
		nk := normalizeKey(k)
		if strings.HasPrefix(nk, prefix) && len(nk) > len(prefix) {
			out[nk[len(prefix):]] = v
		}
	}
	return out
}

// LoadProperties reads a bundled key/value resource from fsys.
// The format follows the file extension (yaml, yml, json or toml); nested
// keys are flattened with dots and lists are joined with spaces.
func LoadProperties(fsys fs.FS, name string) (Properties, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrResourceLoad, name, err)
	}

	configType, err := resourceType(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrResourceLoad, name, err)
	}

	v := viper.New()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrResourceLoad, name, err)
	}

	return viperProperties(v), nil
}

// ResolveProperties loads the bundled defaults and overlays layer on top.
// There is no fallback: a resource that cannot be loaded fails the call.
func ResolveProperties(fsys fs.FS, name string, layer Properties) (Properties, error) {
	defaults, err := LoadProperties(fsys, name)
	if err != nil {
		return nil, err
	}
	return defaults.Overlay(layer), nil
}

func resourceType(name string) (string, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")); ext {
	case "yaml", "yml":
		return "yaml", nil
	case "json", "toml":
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported resource format %q", ext)
	}
}

// viperProperties flattens every key viper knows into Properties
func viperProperties(v *viper.Viper) Properties {
	props := make(Properties)
	for _, key := range v.AllKeys() {
		props[normalizeKey(key)] = propertyString(v.Get(key))
	}
	return props
}

func propertyString(value any) string {
	switch val := value.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, propertyString(item))
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(val, " ")
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return s
}
