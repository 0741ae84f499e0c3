package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/decred/slog"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "hashpass.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "debug"
	defaultLogDirname     = "log"
	defaultLogFilename    = "hashpass.log"

	defaultPort = ":8443"

	defaultInitialDifficulty = 16
	defaultMinDifficulty     = 8
	defaultMaxDifficulty     = 28
	defaultTargetTimeMinSecs = 30
	defaultTargetTimeMaxSecs = 120
	defaultArgon2TimeCost    = 2
	defaultArgon2MemoryKiB   = 65536
	defaultArgon2Parallelism = 1
	defaultWorkerCount       = 4
	defaultVerifierWorkers   = 0 // 0 means "CPU count - 1" at puzzle construction
	defaultMaxNonceSpeed     = 0 // 0 disables the overspeed flag
)

// appHomeDir returns the default per-OS application data directory
// for hashpass, following the same convention the rest of the
// decred tool family uses.
func appHomeDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "Hashpass")
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", "Hashpass")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".hashpass")
	}
}

var (
	hashpassHomeDir   = appHomeDir()
	defaultConfigFile = filepath.Join(hashpassHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(hashpassHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(hashpassHomeDir, defaultLogDirname)
)

// runServiceCommand is only set to a real function on Windows. It is
// used to parse and execute service commands specified via the -s
// flag.
var runServiceCommand func(string) error

// config defines the full set of configuration options for hashpass,
// following spec §6's configuration key list.
type config struct {
	HomeDir    string `long:"homedir" description:"Path to application home directory"`
	ConfigFile string `long:"configfile" description:"Path to configuration file"`
	DataDir    string `long:"datadir" description:"The data directory, holding the audit log and IP blacklist"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Port       string `long:"port" description:"The listening address, e.g. :8443"`
	AdminToken string `long:"admintoken" default-mask:"-" description:"Bearer token required on every /api/admin/... request"`

	InitialDifficulty uint32 `long:"initialdifficulty" description:"The puzzle's starting difficulty, in required leading zero bits"`
	MinDifficulty     uint32 `long:"mindifficulty" description:"The lower bound the difficulty controller will not go below"`
	MaxDifficulty     uint32 `long:"maxdifficulty" description:"The upper bound the difficulty controller will not exceed"`
	TargetTimeMinSecs uint32 `long:"targettimemin" description:"The low end of the target solve-time window, in seconds"`
	TargetTimeMaxSecs uint32 `long:"targettimemax" description:"The high end of the target solve-time window, in seconds"`

	Argon2TimeCost    uint32 `long:"argon2timecost" description:"Argon2 time cost (number of passes)"`
	Argon2MemoryKiB   uint32 `long:"argon2memorykib" description:"Argon2 memory cost, in KiB"`
	Argon2Parallelism uint8  `long:"argon2parallelism" description:"Argon2 parallelism (lane count)"`

	WorkerCount     int     `long:"workercount" description:"Recommended client-side hash worker count, advertised to visitors"`
	VerifierWorkers int     `long:"verifierworkers" description:"Server-side hash verification worker pool size; 0 defaults to CPU count - 1"`
	MaxNonceSpeed   float64 `long:"maxnoncespeed" description:"Self-reported hash rate ceiling, in H/s, above which a client is flagged overspeed; 0 disables the check"`

	ConsolationCodes bool `long:"consolationcodes" description:"Award a best-effort invite code to the closest near-miss submission when a puzzle round times out"`

	TurnstileSiteKey   string `long:"turnstilesitekey" description:"Cloudflare Turnstile site key"`
	TurnstileSecretKey string `long:"turnstilesecretkey" default-mask:"-" description:"Cloudflare Turnstile secret key"`
	TurnstileTestMode  bool   `long:"turnstiletestmode" description:"Accept any non-empty Turnstile token instead of calling Cloudflare, for local development and CI"`

	WebhookURL   string `long:"webhookurl" description:"Optional URL notified on every winning solve"`
	WebhookToken string `long:"webhooktoken" default-mask:"-" description:"Optional bearer token sent with webhook notifications"`

	ServerSecretHex string `long:"serversecret" default-mask:"-" description:"Optional 64-char hex server secret used to mint invite codes; randomly generated if unset"`

	serverSecret []byte
}

// serviceOptions defines the configuration options for the daemon as
// a service on Windows.
type serviceOptions struct {
	ServiceCommand string `short:"s" long:"service" description:"Service command {install, remove, start, stop}"`
}

// cleanAndExpandPath expands environment variables and leading ~ in
// the passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}

	// NOTE: os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via
	// POSIX-style $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or
	// ~otheruser to otheruser's home directory.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// validLogLevel returns whether or not logLevel is a valid debug log
// level.
func validLogLevel(logLevel string) bool {
	_, ok := slog.LevelFromString(logLevel)
	return ok
}

// supportedSubsystems returns a sorted slice of the supported
// subsystems for logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level
// and set the levels accordingly. An appropriate error is returned if
// anything is invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%v]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is invalid -- supported subsystems %v",
				subsysID, supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", logLevel)
		}
		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, so *serviceOptions, options flags.Options) *flags.Parser {
	parser := flags.NewParser(cfg, options)
	if runtime.GOOS == "windows" {
		parser.AddGroup("Service Options", "Service Options", so)
	}
	return parser
}

// createConfigFile copies the sample config to the given destination
// path, substituting the resolved defaults in for the commented-out
// placeholders.
func createConfigFile(preCfg config) error {
	err := os.MkdirAll(filepath.Dir(preCfg.ConfigFile), 0700)
	if err != nil {
		return err
	}

	replacements := map[string]string{
		"debuglevel":        preCfg.DebugLevel,
		"homedir":           preCfg.HomeDir,
		"datadir":           preCfg.DataDir,
		"configfile":        preCfg.ConfigFile,
		"logdir":            preCfg.LogDir,
		"port":              preCfg.Port,
		"initialdifficulty": fmt.Sprintf("%d", preCfg.InitialDifficulty),
		"mindifficulty":     fmt.Sprintf("%d", preCfg.MinDifficulty),
		"maxdifficulty":     fmt.Sprintf("%d", preCfg.MaxDifficulty),
		"targettimemin":     fmt.Sprintf("%d", preCfg.TargetTimeMinSecs),
		"targettimemax":     fmt.Sprintf("%d", preCfg.TargetTimeMaxSecs),
		"argon2timecost":    fmt.Sprintf("%d", preCfg.Argon2TimeCost),
		"argon2memorykib":   fmt.Sprintf("%d", preCfg.Argon2MemoryKiB),
		"argon2parallelism": fmt.Sprintf("%d", preCfg.Argon2Parallelism),
		"workercount":       fmt.Sprintf("%d", preCfg.WorkerCount),
		"verifierworkers":   fmt.Sprintf("%d", preCfg.VerifierWorkers),
		"maxnoncespeed":     fmt.Sprintf("%v", preCfg.MaxNonceSpeed),
	}

	s := ConfigFileContents
	for key, val := range replacements {
		re := regexp.MustCompile(fmt.Sprintf(`(?m)^;\s*%s=[^\s]*$`, regexp.QuoteMeta(key)))
		s = re.ReplaceAllString(s, fmt.Sprintf("%s=%s", key, val))
	}

	dest, err := os.OpenFile(preCfg.ConfigFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = dest.WriteString(s)
	return err
}

// loadConfig initializes and parses the config using a config file
// and command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file, overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	cfg := config{
		HomeDir:           hashpassHomeDir,
		ConfigFile:        defaultConfigFile,
		DataDir:           defaultDataDir,
		LogDir:            defaultLogDir,
		DebugLevel:        defaultLogLevel,
		Port:              defaultPort,
		InitialDifficulty: defaultInitialDifficulty,
		MinDifficulty:     defaultMinDifficulty,
		MaxDifficulty:     defaultMaxDifficulty,
		TargetTimeMinSecs: defaultTargetTimeMinSecs,
		TargetTimeMaxSecs: defaultTargetTimeMaxSecs,
		Argon2TimeCost:    defaultArgon2TimeCost,
		Argon2MemoryKiB:   defaultArgon2MemoryKiB,
		Argon2Parallelism: defaultArgon2Parallelism,
		WorkerCount:       defaultWorkerCount,
		VerifierWorkers:   defaultVerifierWorkers,
		MaxNonceSpeed:     defaultMaxNonceSpeed,
	}

	serviceOpts := serviceOptions{}

	// Pre-parse the command line options to see if an alternative
	// config file or the version/help flag was specified. Any errors
	// aside from the help message error can be ignored here since
	// they will be caught by the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, &serviceOpts, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		} else if ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)

	if serviceOpts.ServiceCommand != "" && runServiceCommand != nil {
		err := runServiceCommand(serviceOpts.ServiceCommand)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(0)
	}

	// Update the home directory if specified, and derive the other
	// directories from it unless they were independently overridden.
	if preCfg.HomeDir != "" {
		cfg.HomeDir, _ = filepath.Abs(preCfg.HomeDir)

		if preCfg.ConfigFile == defaultConfigFile {
			defaultConfigFile = filepath.Join(cfg.HomeDir, defaultConfigFilename)
			preCfg.ConfigFile = defaultConfigFile
			cfg.ConfigFile = defaultConfigFile
		} else {
			cfg.ConfigFile = preCfg.ConfigFile
		}
		if preCfg.DataDir == defaultDataDir {
			cfg.DataDir = filepath.Join(cfg.HomeDir, defaultDataDirname)
		} else {
			cfg.DataDir = preCfg.DataDir
		}
		if preCfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
		} else {
			cfg.LogDir = preCfg.LogDir
		}
	}

	// Create a default config file at the configured path when none
	// exists there.
	if !fileExists(preCfg.ConfigFile) {
		err := createConfigFile(preCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating a default config file: %v", err)
		}
	}

	var configFileError error
	parser := newConfigParser(&cfg, &serviceOpts, flags.Default)
	if fileExists(preCfg.ConfigFile) {
		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, nil, err
			}
			configFileError = err
		}
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	funcName := "loadConfig"
	err = os.MkdirAll(cfg.HomeDir, 0700)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				err = fmt.Errorf("is symlink %s -> %s mounted?", e.Path, link)
			}
		}
		err := fmt.Errorf("%s: failed to create home directory: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("%s: failed to create data directory: %v", funcName, err)
	}
	logRotator = nil

	// Initialize log rotation. After log rotation has been
	// initialized, the logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.MinDifficulty > cfg.MaxDifficulty {
		err := fmt.Errorf("%s: mindifficulty (%d) cannot exceed maxdifficulty (%d)",
			funcName, cfg.MinDifficulty, cfg.MaxDifficulty)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.InitialDifficulty < cfg.MinDifficulty || cfg.InitialDifficulty > cfg.MaxDifficulty {
		err := fmt.Errorf("%s: initialdifficulty (%d) must be within [mindifficulty, maxdifficulty] ([%d, %d])",
			funcName, cfg.InitialDifficulty, cfg.MinDifficulty, cfg.MaxDifficulty)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.TargetTimeMinSecs >= cfg.TargetTimeMaxSecs {
		err := fmt.Errorf("%s: targettimemin (%d) must be less than targettimemax (%d)",
			funcName, cfg.TargetTimeMinSecs, cfg.TargetTimeMaxSecs)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.ServerSecretHex != "" {
		secret, err := hex.DecodeString(cfg.ServerSecretHex)
		if err != nil || len(secret) != 32 {
			err := fmt.Errorf("%s: serversecret must be exactly 64 hex characters (32 bytes)", funcName)
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
		cfg.serverSecret = secret
	}

	if cfg.AdminToken == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, fmt.Errorf("%s: failed to generate a random admin token: %v", funcName, err)
		}
		cfg.AdminToken = hex.EncodeToString(buf)
		pLog.Warnf("no admintoken configured; generated one for this run: %s", cfg.AdminToken)
	}

	if configFileError != nil {
		pLog.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

// targetTimeMin and targetTimeMax convert the configured second
// counts to durations, for handing to puzzle.Config.
func (c *config) targetTimeMin() time.Duration {
	return time.Duration(c.TargetTimeMinSecs) * time.Second
}

func (c *config) targetTimeMax() time.Duration {
	return time.Duration(c.TargetTimeMaxSecs) * time.Second
}
