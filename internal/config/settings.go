// Package config resolves settings through an ordered chain of sources:
// process environment, section-scoped config file, and global defaults.
// The rest of the tool treats it purely as a read-only key/value and
// mapping source.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ConfigName is the base name of the project config file (s3conf.ini) and
// of the cache directory (.s3conf).
const ConfigName = "s3conf"

// ErrEnvfilePathNotConfigured is returned when no environment file path is
// resolvable from settings.
var ErrEnvfilePathNotConfigured = errors.New("environment file path not configured")

// Resolver is one source of settings values.
type Resolver interface {
	Lookup(key string) (string, bool)
	fmt.Stringer
}

// EnvResolver reads from the process environment.
type EnvResolver struct{}

func (EnvResolver) Lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	return value, ok && value != ""
}

func (EnvResolver) String() string {
	return "environment"
}

// FileResolver reads one section of an ini file. The file is parsed lazily
// on first lookup; a missing or unreadable file resolves nothing.
type FileResolver struct {
	path    string
	section string
	file    *ini.File
	loaded  bool
}

func NewFileResolver(path, section string) *FileResolver {
	if section == "" {
		section = ini.DefaultSection
	}
	return &FileResolver{path: path, section: section}
}

func (r *FileResolver) load() *ini.File {
	if !r.loaded {
		r.loaded = true
		file, err := ini.Load(r.path)
		if err != nil {
			slog.Debug("config file not readable", "path", r.path, "error", err)
			return nil
		}
		r.file = file
	}
	return r.file
}

func (r *FileResolver) Lookup(key string) (string, bool) {
	file := r.load()
	if file == nil {
		return "", false
	}
	section, err := file.GetSection(r.section)
	if err != nil {
		return "", false
	}
	if !section.HasKey(key) {
		return "", false
	}
	value := section.Key(key).String()
	return value, value != ""
}

func (r *FileResolver) Sections() []string {
	file := r.load()
	if file == nil {
		return nil
	}
	var names []string
	for _, name := range file.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (r *FileResolver) String() string {
	return r.path + ":" + r.section
}

// Mapping is one declared (local, remote) sync pair.
type Mapping struct {
	Local  string
	Remote string
}

// Settings resolves keys through its resolver chain and derives the
// project-level paths: the root folder, the config file and the cache dir.
type Settings struct {
	Section    string
	ConfigFile string
	RootDir    string
	CacheDir   string

	resolvers []Resolver
}

// NewSettings builds the resolver chain. Without an explicit config file
// the root folder is detected by walking up from the working directory
// until an s3conf.ini is found. When a section is given it takes precedence
// over the process environment, mirroring "run against this named project"
// semantics; otherwise the environment wins.
func NewSettings(section, configFile string) (*Settings, error) {
	var rootDir string
	if configFile != "" {
		abs, err := filepath.Abs(expandUser(configFile))
		if err != nil {
			return nil, fmt.Errorf("resolve config file: %w", err)
		}
		configFile = abs
		rootDir = filepath.Dir(abs)
	} else {
		rootDir = lookupRootDir()
		configFile = filepath.Join(rootDir, ConfigName+".ini")
	}

	s := &Settings{
		Section:    section,
		ConfigFile: configFile,
		RootDir:    rootDir,
		CacheDir:   filepath.Join(rootDir, "."+ConfigName),
	}
	defaultConfig := filepath.Join(s.CacheDir, "default.ini")

	if section != "" {
		s.resolvers = []Resolver{
			NewFileResolver(configFile, section),
			EnvResolver{},
			NewFileResolver(defaultConfig, ""),
		}
	} else {
		s.resolvers = []Resolver{
			EnvResolver{},
			NewFileResolver(configFile, ""),
			NewFileResolver(defaultConfig, ""),
		}
	}
	slog.Debug("settings resolved",
		"root", s.RootDir, "config", s.ConfigFile, "cache", s.CacheDir, "section", section)
	return s, nil
}

// Lookup walks the resolver chain and returns the first non-empty value.
func (s *Settings) Lookup(key string) (string, bool) {
	for _, resolver := range s.resolvers {
		if value, ok := resolver.Lookup(key); ok {
			slog.Debug("settings lookup", "key", key, "source", resolver.String())
			return value, true
		}
	}
	return "", false
}

// Get returns the resolved value for key, or def when no source has it.
func (s *Settings) Get(key, def string) string {
	if value, ok := s.Lookup(key); ok {
		return value
	}
	return def
}

// EnvironmentFilePath resolves the remote environment file path from the
// S3CONF key. A missing value is a usage error carrying the config sections
// detected on disk as a hint.
func (s *Settings) EnvironmentFilePath() (string, error) {
	path, ok := s.Lookup("S3CONF")
	if !ok {
		hint := "set the environment variable S3CONF or provide a section from an existing config file"
		if sections := s.Sections(); len(sections) > 0 {
			hint += "; detected sections: " + strings.Join(sections, ", ")
		}
		return "", fmt.Errorf("%w: %s", ErrEnvfilePathNotConfigured, hint)
	}
	return path, nil
}

// FileMappings parses the S3CONF_MAP value, a semicolon-separated list of
// remote:local pairs, into ordered mappings with local paths anchored at
// the root folder.
func (s *Settings) FileMappings() []Mapping {
	value, ok := s.Lookup("S3CONF_MAP")
	if !ok {
		return nil
	}

	var mappings []Mapping
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		idx := strings.LastIndex(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		remote, local := pair[:idx], pair[idx+1:]
		mappings = append(mappings, Mapping{
			Local:  s.PathFromRoot(local),
			Remote: remote,
		})
	}
	return mappings
}

// PathFromRoot anchors a mapping-relative path at the root folder.
func (s *Settings) PathFromRoot(path string) string {
	return filepath.Join(s.RootDir, strings.TrimPrefix(path, "/"))
}

// Sections lists the named sections of the project config file.
func (s *Settings) Sections() []string {
	return NewFileResolver(s.ConfigFile, "").Sections()
}

// lookupRootDir walks up from the working directory looking for the project
// config file. When none is found the working directory itself is the root.
func lookupRootDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for current := dir; ; {
		candidate := filepath.Join(current, ConfigName+".ini")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			slog.Debug("root folder detected", "root", current)
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir
		}
		current = parent
	}
}

func expandUser(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
