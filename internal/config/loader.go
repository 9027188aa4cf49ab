package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATINDEX_"

const maxConfigFileSize = 1 << 20

// LoadWithFile builds a Config from defaults, then the YAML file at
// configPath, then CHATINDEX_* environment variables. Later sources win.
//
// An empty configPath means DefaultPath. A file that does not exist leaves
// the defaults in place. An existing file must sit under
// ~/.config/chatindex/ or /etc/chatindex/, be mode 0600 or 0400 and be no
// larger than 1MB.
//
// Environment variables split on the first underscore after the prefix:
//
//	CHATINDEX_SERVER_PORT       -> server.port
//	CHATINDEX_INDEX_DB_PATH     -> index.db_path
//	CHATINDEX_LOGGING_LEVEL     -> logging.level
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	if err := checkLocation(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	k := koanf.New(".")

	raw, err := readConfigFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{k: k}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns the file contents after checking mode and size on
// the open descriptor, so the file checked is the file read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
			return nil, fmt.Errorf("insecure config file permissions: %v (want 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return io.ReadAll(f)
}

// checkLocation rejects paths outside the config directories, following
// symlinks on both sides. The file itself need not exist.
func checkLocation(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	dirs, err := configDirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		candidates := []string{dir}
		if resolved, err := filepath.EvalSymlinks(dir); err == nil && resolved != dir {
			candidates = append(candidates, resolved)
		}
		for _, d := range candidates {
			if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
				return nil
			}
		}
	}
	return errors.New("config file must be in ~/.config/chatindex/ or /etc/chatindex/")
}

func configDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	return []string{filepath.Join(home, ".config", "chatindex"), "/etc/chatindex"}, nil
}

// envKey turns CHATINDEX_SECTION_FIELD_NAME into section.field_name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + field
}

// DefaultPath is ~/.config/chatindex/config.yaml.
func DefaultPath() (string, error) {
	dirs, err := configDirs()
	if err != nil {
		return "", err
	}
	return filepath.Join(dirs[0], "config.yaml"), nil
}

// ExpandHome resolves a leading "~" or "~/". Other paths, "~user" included,
// come back unchanged.
func ExpandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, rest), nil
}
