package deserialize

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Configuration keys read by `OptionsFromViper`.
const (
	ConfigEncoding        = "encoding"
	ConfigTag             = "tag"
	ConfigRoot            = "root"
	ConfigMaxDepth        = "max_depth"
	ConfigParallelism     = "parallelism"
	ConfigDateTimeLayouts = "datetime_layouts"
)

// Read options from a configuration section, e.g.
//
//	deserializer:
//	  encoding: yaml
//	  root: catalog
//	  max_depth: 64
//	  parallelism: 4
//	  datetime_layouts: ["2006-01-02T15:04:05-07:00", "2006-01-02"]
//
// `key` is the section, "" for the top level. Missing keys take the
// defaults of the preset for the encoding (json if unspecified). The tag
// defaults to the name of the encoding.
func OptionsFromViper(config *viper.Viper, key string) (Options, error) {
	section := config
	if key != "" {
		section = config.Sub(key)
		if section == nil {
			section = viper.New()
		}
	}
	encoding := section.GetString(ConfigEncoding)
	if encoding == "" {
		encoding = "json"
	}
	driver, err := DriverFor(encoding)
	if err != nil {
		return Options{}, errors.Wrapf(err, "invalid configuration %q", key)
	}
	options := Options{
		MainTagName: driver.Name(),
		RootPath:    section.GetString(ConfigRoot),
		Driver:      driver,
	}
	if section.IsSet(ConfigTag) {
		options.MainTagName = section.GetString(ConfigTag)
	}
	if section.IsSet(ConfigMaxDepth) {
		options.MaxDepth = section.GetInt(ConfigMaxDepth)
		if options.MaxDepth <= 0 {
			return Options{}, errors.Newf("invalid configuration %q, %s must be positive, got %d", key, ConfigMaxDepth, options.MaxDepth)
		}
	}
	if section.IsSet(ConfigParallelism) {
		options.Parallelism = section.GetInt(ConfigParallelism)
		if options.Parallelism < 0 {
			return Options{}, errors.Newf("invalid configuration %q, %s must not be negative, got %d", key, ConfigParallelism, options.Parallelism)
		}
	}
	if section.IsSet(ConfigDateTimeLayouts) {
		options.DateTimeLayouts = section.GetStringSlice(ConfigDateTimeLayouts)
	}
	return options, nil
}
