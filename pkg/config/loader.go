package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configCache stores parsed configuration values per type.
type configCache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	globalCache = &configCache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into v. Each configuration type is
// parsed once; later calls are served from the cache.
//
// The default .env file is loaded on the first call when present.
//
//	type DatabaseConfig struct {
//		Host     string `env:"DB_HOST" envDefault:"localhost"`
//		Port     int    `env:"DB_PORT" envDefault:"5432"`
//		Username string `env:"DB_USER,required"`
//	}
//
//	var dbConfig DatabaseConfig
//	err := config.Load(&dbConfig)
func Load[T any](v *T) error {
	return load(v, env.Options{})
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

// LoadFile is Load with a YAML base file underneath the environment.
// The file maps environment keys to values:
//
//	MAIL_DRIVER: ses
//	QUEUE_NAMES: [mail, default]
//	QUEUE_POLL_INTERVAL: 2s
//
// Process environment variables win over the file, and envDefault tags apply
// only when neither sets a key. Sequences are joined with commas, the default
// envSeparator. The result is cached per type like Load.
func LoadFile[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	base, err := readYAMLEnv(path)
	if err != nil {
		return err
	}

	environment := env.ToMap(os.Environ())
	for key, value := range base {
		if _, set := environment[key]; !set {
			environment[key] = value
		}
	}

	return load(v, env.Options{Environment: environment})
}

// MustLoadFile works like LoadFile but panics on failure.
func MustLoadFile[T any](path string, v *T) {
	if err := LoadFile(path, v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration from %s: %v", path, err))
	}
}

// LoadEnv loads the given .env files into the process environment, the
// default .env when none is given. Later files override earlier ones and
// existing variables.
func LoadEnv(paths ...string) error {
	if err := godotenv.Overload(paths...); err != nil {
		return fmt.Errorf("failed to load env files %v: %w", paths, err)
	}
	return nil
}

// MustLoadEnv works like LoadEnv but panics on failure.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(err)
	}
}

// ResetCache drops every cached configuration.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	clear(globalCache.values)
	clear(globalCache.onces)
}

// ForceReloadConfig parses v again, replacing the cached value.
func ForceReloadConfig[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	typeName := getTypeName[T]()

	globalCache.mu.Lock()
	delete(globalCache.values, typeName)
	delete(globalCache.onces, typeName)
	globalCache.mu.Unlock()

	return Load(v)
}

func load[T any](v *T, opts env.Options) error {
	defaultEnvLoaded.Do(func() {
		// the default .env file is optional
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	typeName := getTypeName[T]()

	if cached, ok := cachedValue[T](typeName); ok {
		*v = cached
		return nil
	}

	globalCache.mu.Lock()
	once, exists := globalCache.onces[typeName]
	if !exists {
		once = new(sync.Once)
		globalCache.onces[typeName] = once
	}
	globalCache.mu.Unlock()

	var err error
	once.Do(func() {
		var parsed T
		if parseErr := env.ParseWithOptions(&parsed, opts); parseErr != nil {
			err = errors.Join(ErrParsingConfig, parseErr)
			return
		}

		globalCache.mu.Lock()
		globalCache.values[typeName] = parsed
		globalCache.mu.Unlock()
	})
	if err != nil {
		return err
	}

	if cached, ok := cachedValue[T](typeName); ok {
		*v = cached
		return nil
	}

	return ErrConfigNotLoaded
}

func cachedValue[T any](typeName string) (T, bool) {
	globalCache.mu.RLock()
	defer globalCache.mu.RUnlock()

	cached, ok := globalCache.values[typeName]
	if !ok {
		var zero T
		return zero, false
	}
	value, ok := cached.(T)
	return value, ok
}

// readYAMLEnv flattens a YAML mapping of environment keys into strings.
func readYAMLEnv(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrConfigFile, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrConfigFile, fmt.Errorf("%s: %w", path, err))
	}

	out := make(map[string]string, len(doc))
	for key, node := range doc {
		value, err := yamlValue(&node)
		if err != nil {
			return nil, errors.Join(ErrConfigFile, fmt.Errorf("%s: key %s: %w", path, key, err))
		}
		out[key] = value
	}

	return out, nil
}

func yamlValue(node *yaml.Node) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return "", nil
		}
		return node.Value, nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("line %d: sequences may only hold scalars", item.Line)
			}
			items = append(items, item.Value)
		}
		return strings.Join(items, ","), nil
	case yaml.AliasNode:
		if node.Alias == nil {
			return "", fmt.Errorf("line %d: dangling alias", node.Line)
		}
		return yamlValue(node.Alias)
	default:
		return "", fmt.Errorf("line %d: nested mappings are not supported", node.Line)
	}
}

// getTypeName returns a string identifier for the generic type T
func getTypeName[T any]() string {
	t := reflect.TypeFor[T]()
	return t.String()
}
