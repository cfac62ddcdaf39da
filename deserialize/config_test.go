//nolint:exhaustruct
package deserialize_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/deserialize"
	"github.com/pasqal-io/graphdasse/internal/library"
)

func loadConfig(t *testing.T, source string) *viper.Viper {
	t.Helper()
	config := viper.New()
	config.SetConfigType("yaml")
	assert.NilError(t, config.ReadConfig(bytes.NewBufferString(source)))
	return config
}

func TestOptionsFromViper(t *testing.T) {
	config := loadConfig(t, `
deserializer:
  encoding: yaml
  root: catalog
  max_depth: 64
  parallelism: 4
  datetime_layouts: ["2006-01-02"]
`)
	options, err := deserialize.OptionsFromViper(config, "deserializer")
	assert.NilError(t, err)
	assert.Equal(t, options.Driver.Name(), "yaml")
	assert.Equal(t, options.MainTagName, "yaml")
	assert.Equal(t, options.RootPath, "catalog")
	assert.Equal(t, options.MaxDepth, 64)
	assert.Equal(t, options.Parallelism, 4)
	assert.DeepEqual(t, options.DateTimeLayouts, []string{time.DateOnly})

	deserializer, err := deserialize.MakeDeserializer[library.Review](options)
	assert.NilError(t, err)
	review, err := deserializer.DeserializeString("id: 4\ndate: 2018-05-17\n", nil)
	assert.NilError(t, err)
	assert.Equal(t, review.ID, 4)
	assert.Equal(t, review.Date.Format(time.DateOnly), "2018-05-17")
}

func TestOptionsFromViperDefaults(t *testing.T) {
	options, err := deserialize.OptionsFromViper(viper.New(), "missing")
	assert.NilError(t, err)
	assert.Equal(t, options.Driver.Name(), "json")
	assert.Equal(t, options.MainTagName, "json")
	assert.Equal(t, options.MaxDepth, 0)
	assert.Equal(t, options.Parallelism, 0)

	config := loadConfig(t, "encoding: query\ntag: form\n")
	options, err = deserialize.OptionsFromViper(config, "")
	assert.NilError(t, err)
	assert.Equal(t, options.Driver.Name(), "query")
	assert.Equal(t, options.MainTagName, "form")
}

func TestOptionsFromViperErrors(t *testing.T) {
	_, err := deserialize.OptionsFromViper(loadConfig(t, "encoding: xml\n"), "")
	assert.ErrorContains(t, err, "unknown encoding \"xml\"")

	_, err = deserialize.OptionsFromViper(loadConfig(t, "max_depth: 0\n"), "")
	assert.ErrorContains(t, err, "max_depth must be positive")

	_, err = deserialize.OptionsFromViper(loadConfig(t, "parallelism: -1\n"), "")
	assert.ErrorContains(t, err, "parallelism must not be negative")
}
