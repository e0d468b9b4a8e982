package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/gstoney/mclimbo/packet"
)

const envVarPrefix = "MCLIMBO"

// Config contains every option of the limbo server. It is read once at
// startup and treated as immutable afterwards.
type Config struct {
	// Address the Minecraft listener binds to.
	Bind string `toml:"bind"`
	// Maximum number of players past login. -1 means unlimited.
	MaxPlayers int `toml:"max_players"`
	// Server list description.
	MOTD string `toml:"motd"`
	// Name reported in the server list version field.
	VersionName string `toml:"version_name"`
	// Sent to clients through the brand plugin channel.
	Brand string `toml:"brand"`
	// Accepted protocol range, inclusive.
	MinProtocol int32 `toml:"min_protocol"`
	MaxProtocol int32 `toml:"max_protocol"`
	// Payloads at least this long are compressed. -1 disables compression.
	CompressionThreshold int `toml:"compression_threshold"`
	// A connection that sends nothing for this long is dropped.
	ReadTimeout Duration `toml:"read_timeout"`
	// Outbound packets buffered per connection before it is closed.
	QueueSize int `toml:"queue_size"`

	KeepAlive struct {
		Period Duration `toml:"period"`
		// Players whose last response is older than this are kicked. 0 disables.
		Timeout Duration `toml:"timeout"`
	} `toml:"keep_alive"`

	World struct {
		// Directory with codec_<protocol>.nbt files. Empty uses the builtin codec.
		Dir string `toml:"dir"`
		// overworld, the_nether or the_end.
		Dimension string `toml:"dimension"`
		// 0 survival, 1 creative, 2 adventure, 3 spectator.
		GameMode int     `toml:"game_mode"`
		SpawnX   float64 `toml:"spawn_x"`
		SpawnY   float64 `toml:"spawn_y"`
		SpawnZ   float64 `toml:"spawn_z"`
		Yaw      float32 `toml:"yaw"`
		Pitch    float32 `toml:"pitch"`
	} `toml:"world"`

	Transport struct {
		MaxPacketLen       int32 `toml:"max_packet_len"`
		MaxDecompressedLen int32 `toml:"max_decompressed_len"`
	} `toml:"transport"`

	Logging struct {
		// debug, info, warn or error.
		Level string `toml:"level"`
		// Blank writes to stderr.
		File          string `toml:"file"`
		IncludeCaller bool   `toml:"include_caller"`
		// Development loggers panic on DPanic, which flags encoder misuse.
		Development bool `toml:"development"`
	} `toml:"logging"`

	Admin struct {
		// HTTP address for /metrics and /connections. Blank disables it.
		Addr string `toml:"addr"`
	} `toml:"admin"`

	Wake struct {
		Enabled    bool   `toml:"enabled"`
		Region     string `toml:"region"`
		InstanceID string `toml:"instance_id"`
		// Minimum time between two start requests.
		Cooldown Duration `toml:"cooldown"`
		// How long a describe result is reused.
		StatusTTL Duration `toml:"status_ttl"`
	} `toml:"wake"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(b))
	return
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	c := &Config{
		Bind:                 "0.0.0.0:25565",
		MaxPlayers:           100,
		MOTD:                 "A Limbo Server",
		VersionName:          "mclimbo",
		Brand:                "mclimbo",
		MinProtocol:          int32(packet.MinVersion),
		MaxProtocol:          int32(packet.MaxVersion),
		CompressionThreshold: 256,
		ReadTimeout:          Duration{30 * time.Second},
		QueueSize:            128,
	}
	c.KeepAlive.Period = Duration{5 * time.Second}
	c.KeepAlive.Timeout = Duration{30 * time.Second}
	c.World.Dimension = "overworld"
	c.World.GameMode = 3
	c.World.SpawnY = 100
	c.Transport.MaxPacketLen = 1 << 21
	c.Transport.MaxDecompressedLen = 1 << 23
	c.Logging.Level = "info"
	c.Wake.Cooldown = Duration{time.Minute}
	c.Wake.StatusTTL = Duration{10 * time.Second}
	return c
}

// Load reads .env (if present), then the TOML file at path (if not blank),
// then MCLIMBO_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys: %v", undecoded)
		}
	}

	if err := applyEnv(envVarPrefix, reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes c as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

var durationType = reflect.TypeOf(Duration{})

// applyEnv overrides fields from variables named after their TOML path,
// e.g. keep_alive.timeout is read from MCLIMBO_KEEP_ALIVE_TIMEOUT.
func applyEnv(prefix string, v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("toml")
		if key == "" {
			continue
		}
		name := prefix + "_" + strings.ToUpper(key)
		fv := v.Field(i)

		if fv.Kind() == reflect.Struct && fv.Type() != durationType {
			if err := applyEnv(name, fv); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		var d Duration
		if err := d.UnmarshalText([]byte(raw)); err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}

var dimensions = map[string]bool{
	"overworld":  true,
	"the_nether": true,
	"the_end":    true,
}

// Validate reports every invalid option at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, _, err := net.SplitHostPort(c.Bind); err != nil {
		add("bind: %w", err)
	}
	if c.MaxPlayers < -1 {
		add("max_players: must be -1 or more, got %d", c.MaxPlayers)
	}

	minV, maxV := c.VersionRange()
	if !minV.IsSupported() {
		add("min_protocol: %d is not a supported protocol", c.MinProtocol)
	}
	if !maxV.IsSupported() {
		add("max_protocol: %d is not a supported protocol", c.MaxProtocol)
	}
	if minV > maxV {
		add("min_protocol %d is above max_protocol %d", c.MinProtocol, c.MaxProtocol)
	}

	if c.CompressionThreshold < -1 {
		add("compression_threshold: must be -1 or more, got %d", c.CompressionThreshold)
	}
	if c.ReadTimeout.Duration <= 0 {
		add("read_timeout: must be positive")
	}
	if c.QueueSize <= 0 {
		add("queue_size: must be positive, got %d", c.QueueSize)
	}
	if c.KeepAlive.Period.Duration <= 0 {
		add("keep_alive.period: must be positive")
	}
	if c.KeepAlive.Timeout.Duration < 0 {
		add("keep_alive.timeout: must not be negative")
	}

	if !dimensions[c.World.Dimension] {
		add("world.dimension: unknown dimension %q", c.World.Dimension)
	}
	if c.World.GameMode < 0 || c.World.GameMode > 3 {
		add("world.game_mode: must be 0-3, got %d", c.World.GameMode)
	}

	if c.Transport.MaxPacketLen <= 0 || c.Transport.MaxDecompressedLen <= 0 {
		add("transport: limits must be positive")
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %w", err)
	}

	if c.Wake.Enabled && c.Wake.InstanceID == "" {
		add("wake.instance_id: required when wake is enabled")
	}

	return errors.Join(errs...)
}

// VersionRange returns the accepted protocol range.
func (c *Config) VersionRange() (packet.Version, packet.Version) {
	return packet.Version(c.MinProtocol), packet.Version(c.MaxProtocol)
}

// Accepts reports whether a client on protocol v may log in.
func (c *Config) Accepts(v packet.Version) bool {
	minV, maxV := c.VersionRange()
	return v.IsSupported() && v.Between(minV, maxV)
}
