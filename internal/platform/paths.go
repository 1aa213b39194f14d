package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories when no override is given.
const DefaultAppName = "critpath"

// Paths holds the resolved config, data, database and report locations.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	ReportsDir string
}

// Options selects the app directory name; DevMode appends "-dev" so local runs never
// touch an installed copy's database.
type Options struct {
	AppName string
	DevMode bool
}

// baseOverride names the env vars that replace the config and data base dirs on one OS.
type baseOverride struct {
	configVar string
	dataVar   string
}

// overrides is keyed by GOOS. macOS and unlisted platforms keep the user dirs as given.
var overrides = map[string]baseOverride{
	"linux":   {configVar: "XDG_CONFIG_HOME", dataVar: "XDG_DATA_HOME"},
	"windows": {configVar: "APPDATA", dataVar: "LOCALAPPDATA"},
}

// DefaultPaths resolves paths for the default app name outside dev mode.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves paths from the current user's home and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := defaultDataBase(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}

	env := make(map[string]string, 4)
	for _, o := range overrides {
		env[o.configVar] = os.Getenv(o.configVar)
		env[o.dataVar] = os.Getenv(o.dataVar)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// defaultDataBase picks the platform data base dir before env overrides apply.
func defaultDataBase(goos, configDir string) (string, error) {
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return v, nil
		}
	}
	return configDir, nil
}

// PathsFor resolves per-app paths for goos from explicit env and base dirs.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if o, ok := overrides[goos]; ok {
		configBase = firstSet(env[o.configVar], configBase)
		dataBase = firstSet(env[o.dataVar], dataBase)
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		ReportsDir: filepath.Join(dataDir, "reports"),
	}, nil
}

func firstSet(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
