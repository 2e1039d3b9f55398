package cfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Decoder 将配置文件内容解码为通用的 map/slice 结构
type Decoder interface {
	Decode(data []byte) (any, error)
}

// DecoderForFile 根据文件扩展名选择解码器
//
//	.json -> JsonDecoder
//	.yaml/.yml -> YamlDecoder
//	.toml -> TomlDecoder
//	.ini -> IniDecoder
func DecoderForFile(filename string) (Decoder, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return &JsonDecoder{}, nil
	case ".yaml", ".yml":
		return &YamlDecoder{}, nil
	case ".toml":
		return &TomlDecoder{}, nil
	case ".ini":
		return &IniDecoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

type JsonDecoder struct{}

func (d *JsonDecoder) Decode(data []byte) (any, error) {
	var result any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return result, nil
}

type YamlDecoder struct{}

func (d *YamlDecoder) Decode(data []byte) (any, error) {
	var result any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return result, nil
}

type TomlDecoder struct{}

func (d *TomlDecoder) Decode(data []byte) (any, error) {
	var result map[string]any
	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode TOML: %w", err)
	}
	return result, nil
}

// IniDecoder INI 格式解码器
// 默认 section 的键放在顶层，其他 section 转为同名子 map，值保持字符串
type IniDecoder struct{}

func (d *IniDecoder) Decode(data []byte) (any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode INI: %w", err)
	}

	result := make(map[string]any)
	for _, key := range file.Section(ini.DefaultSection).Keys() {
		result[key.Name()] = key.Value()
	}

	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		// 支持 [database.options] 形式的嵌套 section
		current := result
		for _, part := range strings.Split(section.Name(), ".") {
			next, ok := current[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				current[part] = next
			}
			current = next
		}
		for _, key := range section.Keys() {
			current[key.Name()] = key.Value()
		}
	}

	return result, nil
}
