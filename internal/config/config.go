// Package config loads the storage configuration from its-config.yaml, ITS_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ConfigName is the base name of the configuration file
const ConfigName = "its-config"

// EnvPrefix prefixes environment overrides, e.g. ITS_FLASH_IMAGE
const EnvPrefix = "ITS"

var validate = newValidator()

// newValidator reports fields by their configuration key
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		return name
	})
	return v
}

// Config is the complete service configuration
type Config struct {
	Flash  FlashConfig  `mapstructure:"flash" json:"flash" yaml:"flash"`
	ITS    ITSConfig    `mapstructure:"its" json:"its" yaml:"its"`
	PS     PSConfig     `mapstructure:"ps" json:"ps" yaml:"ps"`
	Crypto CryptoConfig `mapstructure:"crypto" json:"crypto" yaml:"crypto"`
	Log    LogConfig    `mapstructure:"log" json:"log" yaml:"log"`
}

// FlashConfig describes the emulated flash part
type FlashConfig struct {
	Image       string `mapstructure:"image" json:"image" yaml:"image" validate:"required_unless=Kind ram"`
	Kind        string `mapstructure:"kind" json:"kind" yaml:"kind" validate:"oneof=file ram nand"`
	Size        uint32 `mapstructure:"size" json:"size" yaml:"size" validate:"gt=0"`
	SectorSize  uint32 `mapstructure:"sector_size" json:"sector_size" yaml:"sector_size" validate:"gt=0"`
	ProgramUnit uint32 `mapstructure:"program_unit" json:"program_unit" yaml:"program_unit" validate:"gt=0"`
	ErasedValue uint8  `mapstructure:"erased_value" json:"erased_value" yaml:"erased_value"`
}

// ITSConfig places the internal trusted storage area
type ITSConfig struct {
	AreaOffset      uint32 `mapstructure:"area_offset" json:"area_offset" yaml:"area_offset"`
	AreaSize        uint32 `mapstructure:"area_size" json:"area_size" yaml:"area_size" validate:"gt=0"`
	SectorsPerBlock uint32 `mapstructure:"sectors_per_block" json:"sectors_per_block" yaml:"sectors_per_block" validate:"gt=0"`
	MaxAssetSize    uint32 `mapstructure:"max_asset_size" json:"max_asset_size" yaml:"max_asset_size" validate:"gt=0"`
	NumAssets       uint32 `mapstructure:"num_assets" json:"num_assets" yaml:"num_assets" validate:"gt=0"`
	BufferSize      uint32 `mapstructure:"buffer_size" json:"buffer_size" yaml:"buffer_size"`
	CreateLayout    bool   `mapstructure:"create_layout" json:"create_layout" yaml:"create_layout"`
}

// PSConfig places the optional protected storage area
type PSConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	ClientID        int32  `mapstructure:"client_id" json:"client_id" yaml:"client_id"`
	AreaOffset      uint32 `mapstructure:"area_offset" json:"area_offset" yaml:"area_offset"`
	AreaSize        uint32 `mapstructure:"area_size" json:"area_size" yaml:"area_size" validate:"required_if=Enabled true"`
	SectorsPerBlock uint32 `mapstructure:"sectors_per_block" json:"sectors_per_block" yaml:"sectors_per_block" validate:"required_if=Enabled true"`
	MaxObjectSize   uint32 `mapstructure:"max_object_size" json:"max_object_size" yaml:"max_object_size" validate:"required_if=Enabled true"`
	MaxNumObjects   uint32 `mapstructure:"max_num_objects" json:"max_num_objects" yaml:"max_num_objects" validate:"required_if=Enabled true"`
	CreateLayout    bool   `mapstructure:"create_layout" json:"create_layout" yaml:"create_layout"`
}

// CryptoConfig enables asset encryption
type CryptoConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	HUKHex  string `mapstructure:"huk_hex" json:"-" yaml:"-" validate:"omitempty,hexadecimal,len=64"`
	HUKFile string `mapstructure:"huk_file" json:"huk_file" yaml:"huk_file"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" json:"format" yaml:"format" validate:"oneof=text json"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("flash.image", "its-flash.img")
	v.SetDefault("flash.kind", "file")
	v.SetDefault("flash.size", 0x10000)
	v.SetDefault("flash.sector_size", 0x1000)
	v.SetDefault("flash.program_unit", 4)
	v.SetDefault("flash.erased_value", 0xFF)

	v.SetDefault("its.area_offset", 0)
	v.SetDefault("its.area_size", 0x4000)
	v.SetDefault("its.sectors_per_block", 2)
	v.SetDefault("its.max_asset_size", 512)
	v.SetDefault("its.num_assets", 10)
	v.SetDefault("its.buffer_size", 0)
	v.SetDefault("its.create_layout", true)

	v.SetDefault("ps.enabled", false)
	v.SetDefault("ps.client_id", 256)
	v.SetDefault("ps.area_offset", 0x4000)
	v.SetDefault("ps.area_size", 0x4000)
	v.SetDefault("ps.sectors_per_block", 2)
	v.SetDefault("ps.max_object_size", 2048)
	v.SetDefault("ps.max_num_objects", 10)
	v.SetDefault("ps.create_layout", true)

	v.SetDefault("crypto.enabled", false)
	v.SetDefault("crypto.huk_hex", "")
	v.SetDefault("crypto.huk_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults, search paths and environment
// overrides configured. An explicit path replaces the search.
func New(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.its")
		v.AddConfigPath("/etc/its")
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. A missing config file is not an error when
// searching; an explicit path must exist.
func Load(path string) (*Config, error) {
	return LoadFrom(New(path))
}

// LoadFrom reads and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the placement of the storage areas
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	if c.Flash.Size%c.Flash.SectorSize != 0 {
		return fmt.Errorf("flash.size: %d is not a multiple of the sector size %d", c.Flash.Size, c.Flash.SectorSize)
	}
	if err := c.checkArea("its", c.ITS.AreaOffset, c.ITS.AreaSize, c.ITS.SectorsPerBlock); err != nil {
		return err
	}
	if c.PS.Enabled {
		if err := c.checkArea("ps", c.PS.AreaOffset, c.PS.AreaSize, c.PS.SectorsPerBlock); err != nil {
			return err
		}
		if overlaps(c.ITS.AreaOffset, c.ITS.AreaSize, c.PS.AreaOffset, c.PS.AreaSize) {
			return fmt.Errorf("ps.area_offset: protected storage area overlaps the ITS area")
		}
	}

	if c.Crypto.Enabled {
		if c.Crypto.HUKHex == "" && c.Crypto.HUKFile == "" {
			return fmt.Errorf("crypto: encryption needs crypto.huk_hex or crypto.huk_file")
		}
		if c.ITS.BufferSize != 0 && c.ITS.BufferSize != c.ITS.MaxAssetSize {
			return fmt.Errorf("its.buffer_size: must equal its.max_asset_size when encryption is enabled")
		}
	}
	return nil
}

func (c *Config) checkArea(name string, offset, size, sectorsPerBlock uint32) error {
	blockSize := uint64(c.Flash.SectorSize) * uint64(sectorsPerBlock)
	if uint64(size) < 2*blockSize {
		return fmt.Errorf("%s.area_size: %d bytes cannot hold two blocks of %d bytes", name, size, blockSize)
	}
	if offset%c.Flash.SectorSize != 0 {
		return fmt.Errorf("%s.area_offset: %#x is not sector aligned", name, offset)
	}
	if uint64(offset)+uint64(size) > uint64(c.Flash.Size) {
		return fmt.Errorf("%s.area_size: area ends beyond the %d byte flash", name, c.Flash.Size)
	}
	return nil
}

func overlaps(aOff, aSize, bOff, bSize uint32) bool {
	return uint64(aOff) < uint64(bOff)+uint64(bSize) && uint64(bOff) < uint64(aOff)+uint64(aSize)
}

// formatValidationError reports the first failed constraint with its key
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	for _, e := range verrs {
		key := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required", "required_if", "required_unless":
			return fmt.Errorf("%s: field is required", key)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", key, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %q", key, e.Param(), e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", key, e.Tag())
		}
	}
	return err
}
