package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingStyle 表示输入用到的类别没有注册样式。
	ErrMissingStyle = errors.New("样式未注册")
	// ErrInvalidStyle 表示样式字号或行高不为正。
	ErrInvalidStyle = errors.New("样式参数无效")
	// ErrInvalidDimensions 表示页面尺寸或保留区域无效。
	ErrInvalidDimensions = errors.New("页面尺寸无效")
	// ErrPageOutOfRange 表示页码越界。
	ErrPageOutOfRange = errors.New("页码越界")
	// ErrIndexOutOfRange 表示索引位置越界。
	ErrIndexOutOfRange = errors.New("索引位置越界")
)

// ConfigError 是排版开始前发现的配置错误，不会产生部分结果。
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("布局配置错误 %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError 判断 err 是否为配置错误。
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
