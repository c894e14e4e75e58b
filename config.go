package deliver

import (
	"context"
	"encoding"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/kr/pretty"
)

// ConfigParseFunc defines a step of [Config.Parse].
type ConfigParseFunc func(context.Context, *Config) error

// Config defines the startup configuration of the delivery server.
//
// The embedded [ServerConfig] is flattened, so host/ports/ssl are top level
// keys in the JSON file and in alias paths.
type Config struct {
	ServerConfig
	Mimes        map[string]*MimeConfig `alias:"mimes" json:"mimes"`
	Root         string                 `alias:"root" json:"root"`
	Index        string                 `alias:"index" json:"index"`
	Dev          bool                   `alias:"dev" json:"dev"`
	Gzip         bool                   `alias:"gzip" json:"gzip"`
	Expires      *int                   `alias:"expires" json:"expires,omitempty"`
	ReplyTimeout TimeDuration           `alias:"replyTimeout" json:"replyTimeout"`
	Session      SessionConfig          `alias:"session" json:"session"`
	Rate         RateConfig             `alias:"rate" json:"rate"`
	Logger       LoggerConfig           `alias:"logger" json:"logger"`
}

// ServerConfig defines the listeners started by [Server].
type ServerConfig struct {
	Host              string       `alias:"host" json:"host"`
	Ports             ConfigPorts  `alias:"ports" json:"ports"`
	SSL               *ConfigSSL   `alias:"ssl" json:"ssl,omitempty"`
	H2C               bool         `alias:"h2c" json:"h2c"`
	ReadTimeout       TimeDuration `alias:"readTimeout" json:"readTimeout"`
	ReadHeaderTimeout TimeDuration `alias:"readHeaderTimeout" json:"readHeaderTimeout"`
	WriteTimeout      TimeDuration `alias:"writeTimeout" json:"writeTimeout"`
	IdleTimeout       TimeDuration `alias:"idleTimeout" json:"idleTimeout"`
}

// ConfigPorts defines the per-protocol ports.
type ConfigPorts struct {
	HTTP  int `alias:"http" json:"http"`
	HTTPS int `alias:"https" json:"https"`
}

// ConfigSSL defines the https key/cert material.
//
// If Key and Cert are both empty, a self-signed certificate is created.
type ConfigSSL struct {
	Key   string `alias:"key" json:"key"`
	Cert  string `alias:"cert" json:"cert"`
	HTTP2 bool   `alias:"http2" json:"http2"`
}

// MimeConfig defines the delivery rule for a file extension.
type MimeConfig struct {
	Type    string   `alias:"type" json:"type"`
	Dirs    []string `alias:"dirs" json:"dirs"`
	Dynamic bool     `alias:"dynamic" json:"dynamic"`
	Expires *int     `alias:"expires" json:"expires,omitempty"`
}

// SessionConfig defines the session cookie scheme.
type SessionConfig struct {
	Name   string `alias:"name" json:"name"`
	Secret string `alias:"secret" json:"secret"`
	Path   string `alias:"path" json:"path"`
	MaxAge int    `alias:"maxAge" json:"maxAge"`
}

// RateConfig defines the per-client request rate, disabled when Limit is 0.
//
// X-Forwarded-For is only used when the remote address is one of
// TrustedProxies, an ip or cidr list.
type RateConfig struct {
	Limit          float64  `alias:"limit" json:"limit"`
	Burst          int      `alias:"burst" json:"burst"`
	TrustedProxies []string `alias:"trustedProxies" json:"trustedProxies"`
}

// TimeDuration defines a [time.Duration] read from "30s" or nanoseconds.
type TimeDuration time.Duration

// NewConfig function creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host:  "localhost",
			Ports: ConfigPorts{HTTP: 8080, HTTPS: 8443},
		},
		Mimes: map[string]*MimeConfig{
			"html": {Type: "text/html", Dynamic: true},
			"htm":  {Type: "text/html", Dynamic: true},
			"css":  {Type: "text/css"},
			"js":   {Type: "application/javascript"},
			"map":  {Type: "application/json"},
			"json": {Type: "application/json"},
			"txt":  {Type: "text/plain"},
			"svg":  {Type: "image/svg+xml"},
			"png":  {Type: "image/png"},
			"jpg":  {Type: "image/jpeg"},
			"gif":  {Type: "image/gif"},
			"ico":  {Type: "image/x-icon"},
		},
		Root:  ".",
		Index: DefaultParserIndex,
		Session: SessionConfig{
			Name:   DefaultSessionName,
			MaxAge: DefaultSessionMaxAge,
		},
		Logger: LoggerConfig{
			Level:  LoggerInfo,
			Stdout: true,
		},
	}
}

// Parse method runs the parse funcs in order and stops at the first error.
//
// If fns is empty, use JSON file, envs and args.
func (c *Config) Parse(ctx context.Context, fns ...ConfigParseFunc) error {
	if len(fns) == 0 {
		fns = []ConfigParseFunc{
			NewConfigParseJSON(DefaultConfigKeyPath),
			NewConfigParseEnvs(DefaultConfigEnvPrefix),
			NewConfigParseArgs(nil),
		}
	}
	for i, fn := range fns {
		if err := fn(ctx, c); err != nil {
			return fmt.Errorf(ErrConfigParseError, i, err)
		}
	}
	root, err := filepath.Abs(c.Root)
	if err == nil {
		c.Root = root
	}
	return nil
}

// String method renders the config for the startup debug dump.
func (c *Config) String() string {
	return pretty.Sprint(c)
}

// NewConfigParseJSON function reads the JSON file named by arg --key=path
// or env ENV_KEY.
func NewConfigParseJSON(key string) ConfigParseFunc {
	return func(_ context.Context, c *Config) error {
		path := lookupArg(os.Args[1:], key)
		if path == "" {
			path = os.Getenv(DefaultConfigEnvPrefix + strings.ToUpper(key))
		}
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, c)
	}
}

// NewConfigParseEnvs function sets config from env, ENV_PORTS_HTTP=80 is
// converted to path ports.http.
//
// Unrelated variables may share the prefix, so a value that cannot be set
// is skipped and logged at debug level with the Logger of ctx.
func NewConfigParseEnvs(prefix string) ConfigParseFunc {
	return func(ctx context.Context, c *Config) error {
		log := NewLoggerWithContext(ctx)
		for _, value := range os.Environ() {
			if !strings.HasPrefix(value, prefix) {
				continue
			}
			name, v, _ := strings.Cut(value, "=")
			k := strings.ToLower(strings.ReplaceAll(name[len(prefix):], "_", "."))
			if k == DefaultConfigKeyPath {
				continue
			}
			if err := c.Set(k, v); err != nil {
				log.WithField("env", name).Debug(err)
			}
		}
		return nil
	}
}

// NewConfigParseArgs function sets config from --path=value args,
// nil args read [os.Args].
func NewConfigParseArgs(args []string) ConfigParseFunc {
	return func(_ context.Context, c *Config) error {
		if args == nil {
			args = os.Args[1:]
		}
		for _, str := range args {
			if !strings.HasPrefix(str, "--") {
				continue
			}
			k, v, ok := strings.Cut(str[2:], "=")
			if !ok {
				v = "true"
			}
			if k == DefaultConfigKeyPath {
				continue
			}
			if err := c.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	}
}

func lookupArg(args []string, key string) string {
	prefix := "--" + key + "="
	for _, str := range args {
		if strings.HasPrefix(str, prefix) {
			return str[len(prefix):]
		}
	}
	return ""
}

// Set method sets the value at the dotted alias path, such as
// "ports.http" or "mimes.js.type". Matching alias is case-insensitive.
func (c *Config) Set(path, value string) error {
	keys := strings.Split(path, ".")
	err := setValueByPath(reflect.ValueOf(c).Elem(), keys, value)
	if err != nil {
		return fmt.Errorf(ErrConfigSetInvalidValue, path, value, err)
	}
	return nil
}

func setValueByPath(v reflect.Value, keys []string, value string) error {
	if len(keys) == 0 {
		return setValueString(v, value)
	}
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setValueByPath(v.Elem(), keys, value)
	case reflect.Struct:
		field, ok := lookupFieldAlias(v, keys[0])
		if !ok {
			return fmt.Errorf(ErrConfigSetInvalidPath, keys[0])
		}
		return setValueByPath(field, keys[1:], value)
	case reflect.Map:
		if v.IsNil() {
			v.Set(reflect.MakeMap(v.Type()))
		}
		key := reflect.ValueOf(keys[0])
		elem := reflect.New(v.Type().Elem()).Elem()
		if old := v.MapIndex(key); old.IsValid() {
			elem.Set(old)
		}
		if err := setValueByPath(elem, keys[1:], value); err != nil {
			return err
		}
		v.SetMapIndex(key, elem)
		return nil
	}
	return fmt.Errorf(ErrConfigSetInvalidPath, keys[0])
}

func lookupFieldAlias(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous {
			if val, ok := lookupFieldAlias(v.Field(i), name); ok {
				return val, true
			}
			continue
		}
		alias := field.Tag.Get("alias")
		if alias == "" {
			alias = field.Name
		}
		if alias != "-" && strings.EqualFold(alias, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

var typeTextUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func setValueString(v reflect.Value, value string) error {
	if v.CanAddr() && v.Addr().Type().Implements(typeTextUnmarshaler) {
		return v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
	}
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setValueString(v.Elem(), value)
	case reflect.String:
		v.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		v.SetFloat(n)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf(ErrConfigSetInvalidPath, v.Type().String())
		}
		strs := strings.Split(value, ",")
		for i := range strs {
			strs[i] = strings.TrimSpace(strs[i])
		}
		v.Set(reflect.ValueOf(strs))
	default:
		return fmt.Errorf(ErrConfigSetInvalidPath, v.Type().String())
	}
	return nil
}

// UnmarshalText method parses "30s" style or nanoseconds.
func (d *TimeDuration) UnmarshalText(text []byte) error {
	str := string(text)
	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		*d = TimeDuration(n)
		return nil
	}
	t, err := time.ParseDuration(str)
	if err != nil {
		return err
	}
	*d = TimeDuration(t)
	return nil
}

// UnmarshalJSON method accepts a JSON number or string.
func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}

// MarshalText method formats the duration as "30s".
func (d TimeDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d TimeDuration) orDefault(def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return time.Duration(d)
}
