package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDatabaseOptions struct {
	Path               string        `cfg:"path" validate:"required"`
	DisableForeignKeys bool          `cfg:"disableForeignKeys"`
	BusyTimeout        time.Duration `cfg:"busyTimeout" def:"5s"`
	Name               string        `cfg:"name" def:"sorm"`
}

type testLoggerOptions struct {
	Level  string `cfg:"level" def:"info" validate:"oneof=debug info warn error"`
	Format string `cfg:"format" def:"text"`
}

type testOptions struct {
	Database testDatabaseOptions `cfg:"database"`
	Logger   *testLoggerOptions  `cfg:"logger"`
	MaxDepth int                 `cfg:"maxDepth" def:"32"`
	Tags     []string            `cfg:"tags"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "sorm.yaml",
			content: `
database:
  path: /tmp/people.db
  busyTimeout: 2s
logger:
  level: debug
maxDepth: 8
tags:
  - a
  - b
`,
		},
		{
			name: "json",
			file: "sorm.json",
			content: `{
  "database": {"path": "/tmp/people.db", "busyTimeout": "2s"},
  "logger": {"level": "debug"},
  "maxDepth": 8,
  "tags": ["a", "b"]
}`,
		},
		{
			name: "toml",
			file: "sorm.toml",
			content: `
maxDepth = 8
tags = ["a", "b"]

[database]
path = "/tmp/people.db"
busyTimeout = "2s"

[logger]
level = "debug"
`,
		},
		{
			name: "ini",
			file: "sorm.ini",
			content: `
maxdepth = 8
tags = a, b

[database]
path = /tmp/people.db
busytimeout = 2s

[logger]
level = debug
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filename := writeFile(t, tt.file, tt.content)

			var options testOptions
			require.NoError(t, Load(filename, &options))

			assert.Equal(t, "/tmp/people.db", options.Database.Path)
			assert.Equal(t, 2*time.Second, options.Database.BusyTimeout)
			assert.Equal(t, "sorm", options.Database.Name)
			assert.False(t, options.Database.DisableForeignKeys)
			require.NotNil(t, options.Logger)
			assert.Equal(t, "debug", options.Logger.Level)
			assert.Equal(t, "text", options.Logger.Format)
			assert.Equal(t, 8, options.MaxDepth)
			assert.Equal(t, []string{"a", "b"}, options.Tags)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	filename := writeFile(t, "sorm.yaml", "database:\n  path: people.db\n")

	var options testOptions
	require.NoError(t, Load(filename, &options))

	assert.Equal(t, 5*time.Second, options.Database.BusyTimeout)
	assert.Equal(t, 32, options.MaxDepth)
	assert.Nil(t, options.Logger)
}

func TestLoadErrors(t *testing.T) {
	t.Run("empty filename", func(t *testing.T) {
		var options testOptions
		assert.Error(t, Load("", &options))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		filename := writeFile(t, "sorm.xml", "<database/>")
		var options testOptions
		err := Load(filename, &options)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		var options testOptions
		err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &options)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		filename := writeFile(t, "sorm.yaml", "database: [path")
		var options testOptions
		assert.Error(t, Load(filename, &options))
	})

	t.Run("required field missing", func(t *testing.T) {
		filename := writeFile(t, "sorm.yaml", "maxDepth: 4\n")
		var options testOptions
		err := Load(filename, &options)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("oneof violation", func(t *testing.T) {
		filename := writeFile(t, "sorm.yaml", "database:\n  path: a.db\nlogger:\n  level: verbose\n")
		var options testOptions
		assert.Error(t, Load(filename, &options))
	})

	t.Run("bad duration", func(t *testing.T) {
		filename := writeFile(t, "sorm.json", `{"database": {"path": "a.db", "busyTimeout": "soon"}}`)
		var options testOptions
		err := Load(filename, &options)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "busyTimeout")
	})
}

func TestSetDefaults(t *testing.T) {
	t.Run("only zero fields", func(t *testing.T) {
		options := testDatabaseOptions{Name: "custom"}
		require.NoError(t, SetDefaults(&options))
		assert.Equal(t, "custom", options.Name)
		assert.Equal(t, 5*time.Second, options.BusyTimeout)
	})

	t.Run("nested pointer", func(t *testing.T) {
		options := testOptions{Logger: &testLoggerOptions{}}
		require.NoError(t, SetDefaults(&options))
		assert.Equal(t, "info", options.Logger.Level)
		assert.Equal(t, "text", options.Logger.Format)
	})

	t.Run("slice", func(t *testing.T) {
		var options struct {
			Codecs []string `def:"json, msgpack"`
			Ports  []int    `def:"1,2"`
		}
		require.NoError(t, SetDefaults(&options))
		assert.Equal(t, []string{"json", "msgpack"}, options.Codecs)
		assert.Equal(t, []int{1, 2}, options.Ports)
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.Error(t, SetDefaults(nil))
		assert.Error(t, SetDefaults(testOptions{}))
		var p *testOptions
		assert.Error(t, SetDefaults(p))

		var bad struct {
			N int `def:"abc"`
		}
		assert.Error(t, SetDefaults(&bad))
	})
}

func TestIniDecoderNestedSections(t *testing.T) {
	data := []byte(`
name = root

[database.options]
timeout = 3s
`)
	tree, err := (&IniDecoder{}).Decode(data)
	require.NoError(t, err)

	m := tree.(map[string]any)
	assert.Equal(t, "root", m["name"])
	database := m["database"].(map[string]any)
	options := database["options"].(map[string]any)
	assert.Equal(t, "3s", options["timeout"])
}

func TestConvertTo(t *testing.T) {
	t.Run("map field", func(t *testing.T) {
		var object struct {
			Labels map[string]int `cfg:"labels"`
		}
		tree := map[string]any{"labels": map[string]any{"a": 1, "b": 2}}
		require.NoError(t, ConvertTo(tree, &object))
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, object.Labels)
	})

	t.Run("skip field", func(t *testing.T) {
		var object struct {
			Secret string `cfg:"-"`
		}
		require.NoError(t, ConvertTo(map[string]any{"Secret": "x"}, &object))
		assert.Empty(t, object.Secret)
	})

	t.Run("non pointer", func(t *testing.T) {
		var object testOptions
		assert.Error(t, ConvertTo(map[string]any{}, object))
	})

	t.Run("type mismatch", func(t *testing.T) {
		var object struct {
			Count int `cfg:"count"`
		}
		assert.Error(t, ConvertTo(map[string]any{"count": []any{1}}, &object))
	})
}
