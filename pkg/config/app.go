package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POOKIE_APP_URL.
const EnvPrefix = "POOKIE"

// Defaults the form suites were written against.
const (
	DefaultTestPc1Id = "EC01001408989"
	DefaultTestDate  = "10/25/25"
	DefaultBrowser   = "selenium"
)

// DefaultTestPc1Ids is the subject list used when TestPc1Ids is not set.
// It does not follow TestPc1Id.
var DefaultTestPc1Ids = []string{DefaultTestPc1Id}

// SettingsName is the base name of the app settings file; json and yaml are
// both accepted.
const SettingsName = "appsettings"

// Timeouts override the interaction layer's default budgets. Zero keeps the
// default. Values are Go durations ("4s", "1m30s"); bare numbers are seconds.
type Timeouts struct {
	Locate   time.Duration `mapstructure:"locate"`
	Dropdown time.Duration `mapstructure:"dropdown"`
	Ready    time.Duration `mapstructure:"ready"`
	Modal    time.Duration `mapstructure:"modal"`
	Toast    time.Duration `mapstructure:"toast"`
}

// AppConfig is the app under test and the test data a run uses. It is
// loaded once and passed down; there is no package-level instance.
type AppConfig struct {
	AppUrl   string `mapstructure:"appurl"`
	UserName string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	Program string `mapstructure:"program"`
	Role    string `mapstructure:"role"`

	TestPc1Id  string   `mapstructure:"testpc1id"`
	TestPc1Ids []string `mapstructure:"testpc1ids"`
	TestDate   string   `mapstructure:"testdate"`

	CaseHomeTabs   []string `mapstructure:"casehometabs"`
	TestWorkerName string   `mapstructure:"testworkername"`
	TestWorkerId   string   `mapstructure:"testworkerid"`

	Browser          string `mapstructure:"browser"` // selenium or playwright
	WebDriverURL     string `mapstructure:"webdriverurl"`
	ChromeDriverPath string `mapstructure:"chromedriverpath"`
	Headless         bool   `mapstructure:"headless"`

	Timeouts Timeouts `mapstructure:"timeouts"`
}

// envKeys maps settings keys to their environment variable suffix.
var envKeys = map[string]string{
	"appurl":            "APP_URL",
	"username":          "USER_NAME",
	"password":          "PASSWORD",
	"program":           "PROGRAM",
	"role":              "ROLE",
	"testpc1id":         "TEST_PC1_ID",
	"testpc1ids":        "TEST_PC1_IDS",
	"testdate":          "TEST_DATE",
	"casehometabs":      "CASE_HOME_TABS",
	"testworkername":    "TEST_WORKER_NAME",
	"testworkerid":      "TEST_WORKER_ID",
	"browser":           "BROWSER",
	"webdriverurl":      "WEBDRIVER_URL",
	"chromedriverpath":  "CHROMEDRIVER_PATH",
	"headless":          "HEADLESS",
	"timeouts.locate":   "TIMEOUT_LOCATE",
	"timeouts.dropdown": "TIMEOUT_DROPDOWN",
	"timeouts.ready":    "TIMEOUT_READY",
	"timeouts.modal":    "TIMEOUT_MODAL",
	"timeouts.toast":    "TIMEOUT_TOAST",
}

// LoadOptions selects where settings come from.
type LoadOptions struct {
	// Dir is searched for appsettings.{json,yaml,yml} and .env. Defaults to
	// the working directory.
	Dir string
	// File is an explicit settings file; it must exist.
	File string
	// DotEnv lists extra .env files. Missing ones are ignored.
	DotEnv []string
}

// Load reads app settings. Precedence, highest first: environment
// (including .env files, which never replace variables already set), the
// settings file, defaults.
func Load(opts LoadOptions) (*AppConfig, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	envFiles := append([]string{filepath.Join(dir, ".env")}, opts.DotEnv...)
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	SetDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(SettingsName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for key, suffix := range envKeys {
		if err := v.BindEnv(key, EnvPrefix+"_"+suffix); err != nil {
			return nil, err
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// decodeHook replaces viper's default hooks, so the string-to-slice and
// string-to-duration conversions are kept alongside the seconds hook.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook reads numbers, and strings holding only a number,
// as seconds when the target is a time.Duration. JSON numbers would
// otherwise decode as nanoseconds.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		v := reflect.ValueOf(data)
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(v.Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(v.Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(v.Float() * float64(time.Second)), nil
		case reflect.String:
			if secs, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("appurl", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("program", "")
	v.SetDefault("role", "")
	v.SetDefault("testpc1id", DefaultTestPc1Id)
	v.SetDefault("testpc1ids", []string{})
	v.SetDefault("testdate", DefaultTestDate)
	v.SetDefault("casehometabs", []string{})
	v.SetDefault("testworkername", "")
	v.SetDefault("testworkerid", "")
	v.SetDefault("browser", DefaultBrowser)
	v.SetDefault("webdriverurl", "")
	v.SetDefault("chromedriverpath", "")
	v.SetDefault("headless", false)
	v.SetDefault("timeouts.locate", 0)
	v.SetDefault("timeouts.dropdown", 0)
	v.SetDefault("timeouts.ready", 0)
	v.SetDefault("timeouts.modal", 0)
	v.SetDefault("timeouts.toast", 0)
}

func (c *AppConfig) normalize() {
	c.AppUrl = strings.TrimRight(strings.TrimSpace(c.AppUrl), "/")
	c.Browser = strings.ToLower(strings.TrimSpace(c.Browser))
	c.TestPc1Id = strings.TrimSpace(c.TestPc1Id)
	c.TestPc1Ids = NormalizeList(c.TestPc1Ids)
	if len(c.TestPc1Ids) == 0 {
		c.TestPc1Ids = append([]string(nil), DefaultTestPc1Ids...)
	}
	c.CaseHomeTabs = NormalizeList(c.CaseHomeTabs)
}

// Validate reports the settings a browser run cannot do without.
func (c *AppConfig) Validate() error {
	var missing []string
	if c.AppUrl == "" {
		missing = append(missing, "AppUrl")
	}
	if c.UserName == "" {
		missing = append(missing, "UserName")
	}
	if c.Password == "" {
		missing = append(missing, "Password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s (set them in %s.json or %s_* variables)",
			strings.Join(missing, ", "), SettingsName, EnvPrefix)
	}
	switch c.Browser {
	case "selenium", "playwright":
	default:
		return fmt.Errorf("unknown browser backend %q (selenium, playwright)", c.Browser)
	}
	return nil
}

// Variables exposes the test data to flows as ${NAME} variables. The
// password is left out so it never reaches reports.
func (c *AppConfig) Variables() map[string]string {
	vars := map[string]string{
		"APP_URL":          c.AppUrl,
		"USER_NAME":        c.UserName,
		"TEST_DATE":        c.TestDate,
		"TEST_WORKER_NAME": c.TestWorkerName,
		"TEST_WORKER_ID":   c.TestWorkerId,
		"PC1_ID":           c.TestPc1Id,
	}
	for i, tab := range c.CaseHomeTabs {
		vars[fmt.Sprintf("CASE_HOME_TAB_%d", i+1)] = tab
	}
	return vars
}

// NormalizeList trims entries, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling.
func NormalizeList(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
