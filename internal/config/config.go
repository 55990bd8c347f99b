package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/flakyrank/internal/block"
	"github.com/John-Robertt/flakyrank/internal/domain"
)

const (
	// ErrCodeNotFound 表示未给出 dir 且 cwd 下没有配置文件。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示未给出 dir 且配置文件缺少 dir 字段。
	ErrCodeMissingPath = "config_missing_path"
	// ErrCodeMissingTarget 表示 CLI 与配置文件都没有给出 target.id / target.occurrence。
	ErrCodeMissingTarget = "config_missing_target"
)

const (
	DefaultPrefix = "output"
	DefaultExt    = "txt"
	// WildcardPID 是 pid 的通配值（与历史脚本保持一致）。
	WildcardPID int64 = -1
)

// FileNames 是配置文件的发现顺序（JSON 是 YAML 的子集，统一用 yaml.v3 解析）。
var FileNames = []string{"flakyrank.yaml", "flakyrank.yml", "flakyrank.json"}

// CLIArgs 保留“是否显式指定”的信息，以保证 CLI 能覆盖配置文件（包括覆盖为零值）。
type CLIArgs struct {
	Dir string

	TargetID    int64
	TargetIDSet bool

	Occurrence    int64
	OccurrenceSet bool

	PID    int64
	PIDSet bool

	Prefix string
	Ext    string
	ExtSet bool

	MaxBlocks    int
	MaxBlocksSet bool

	Out string
}

// FileConfig 对应 flakyrank.yaml 的解析结构。
type FileConfig struct {
	Dir       string        `yaml:"dir"`
	Prefix    string        `yaml:"prefix"`
	Ext       *string       `yaml:"ext"`
	MaxBlocks *int          `yaml:"max_blocks"`
	Out       string        `yaml:"out"`
	Target    TargetConfig  `yaml:"target"`
	Markers   MarkersConfig `yaml:"markers"`
}

type TargetConfig struct {
	ID         *int64 `yaml:"id"`
	Occurrence *int64 `yaml:"occurrence"`
	PID        *int64 `yaml:"pid"`
}

type MarkersConfig struct {
	Start string `yaml:"start"`
	Stop  string `yaml:"stop"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置。
type EffectiveConfig struct {
	Dir    string
	Prefix string
	Ext    string
	// MaxBlocks 为 0 表示不限制。
	MaxBlocks int

	Selector domain.Selector
	Markers  block.Markers

	// Out 非空时写出 report.json 与 ranks.html。
	Out string

	// ConfigFile 是实际读取的配置文件（未读取时为空）。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 dir", e.Code, e.Path)
	case ErrCodeMissingTarget:
		return fmt.Sprintf("%s：必须通过 --target-id/--occurrence 或配置文件 target.id/target.occurrence 指定目标", e.Code)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：参数无效：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 dir：尝试读取 <dir>/flakyrank.yaml（可选）
// 2) CLI 未提供 dir：必须读取 <cwd>/flakyrank.yaml（必选），且其中必须包含 dir
//
// 覆盖优先级（固定）：CLI > 配置文件 > 默认值。markers 仅由配置文件控制。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Dir) != "" {
		absDir := absCleanFrom(cwdAbs, cli.Dir)
		cfgPath, fc, exists, err := discover(absDir)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(cwdAbs, absDir, absDir, cli, fc, cfgPath)
	}

	cfgPath, fc, exists, err := discover(cwdAbs)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: filepath.Join(cwdAbs, FileNames[0]), Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Dir) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	return merge(cwdAbs, absCleanFrom(cwdAbs, fc.Dir), cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs, absDir, cfgBase string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	prefix := DefaultPrefix
	if strings.TrimSpace(cli.Prefix) != "" {
		prefix = strings.TrimSpace(cli.Prefix)
	} else if strings.TrimSpace(fc.Prefix) != "" {
		prefix = strings.TrimSpace(fc.Prefix)
	}
	if strings.ContainsAny(prefix, `/\`) {
		return invalid(fmt.Errorf("prefix 不能包含路径分隔符：%q", prefix))
	}

	ext := DefaultExt
	if cli.ExtSet {
		ext = cli.Ext
	} else if fc.Ext != nil {
		ext = *fc.Ext
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")

	maxBlocks := 0
	if cli.MaxBlocksSet {
		maxBlocks = cli.MaxBlocks
	} else if fc.MaxBlocks != nil {
		maxBlocks = *fc.MaxBlocks
	}
	if maxBlocks < 0 {
		return invalid(fmt.Errorf("max_blocks 不能为负数：%d", maxBlocks))
	}

	var sel domain.Selector
	switch {
	case cli.TargetIDSet:
		sel.ID = cli.TargetID
	case fc.Target.ID != nil:
		sel.ID = *fc.Target.ID
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingTarget, Path: cfgPath}
	}
	switch {
	case cli.OccurrenceSet:
		sel.Occurrence = cli.Occurrence
	case fc.Target.Occurrence != nil:
		sel.Occurrence = *fc.Target.Occurrence
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingTarget, Path: cfgPath}
	}

	var pid *int64
	if cli.PIDSet {
		v := cli.PID
		pid = &v
	} else if fc.Target.PID != nil {
		v := *fc.Target.PID
		pid = &v
	}
	if pid != nil {
		switch {
		case *pid == WildcardPID:
			pid = nil
		case *pid < 0:
			return invalid(fmt.Errorf("target.pid 只能是非负整数或 %d（通配），实际 %d", WildcardPID, *pid))
		}
	}
	sel.PID = pid

	markers := block.Markers{
		Start: fc.Markers.Start,
		Stop:  fc.Markers.Stop,
	}
	if markers.Start == "" {
		markers.Start = block.DefaultStartMarker
	}
	if markers.Stop == "" {
		markers.Stop = block.DefaultStopMarker
	}
	if markers.Start == markers.Stop {
		return invalid(fmt.Errorf("markers.start 与 markers.stop 不能相同：%q", markers.Start))
	}

	out := ""
	if strings.TrimSpace(cli.Out) != "" {
		// CLI 的相对路径以 cwd 为基准；配置文件中的以配置文件所在目录为基准。
		out = absCleanFrom(cwdAbs, cli.Out)
	} else if strings.TrimSpace(fc.Out) != "" {
		out = absCleanFrom(cfgBase, fc.Out)
	}

	return EffectiveConfig{
		Dir:        absDir,
		Prefix:     prefix,
		Ext:        ext,
		MaxBlocks:  maxBlocks,
		Selector:   sel,
		Markers:    markers,
		Out:        out,
		ConfigFile: cfgPath,
	}, nil
}

// discover 在 dir 下按 FileNames 顺序寻找并解析第一个存在的配置文件。
func discover(dir string) (path string, fc FileConfig, exists bool, err error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		fc, exists, err = readFileConfig(p)
		if err != nil || exists {
			return p, fc, exists, err
		}
	}
	return filepath.Join(dir, FileNames[0]), FileConfig{}, false, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		// 空文件视为空配置。
		if errors.Is(err, io.EOF) {
			return FileConfig{}, true, nil
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
