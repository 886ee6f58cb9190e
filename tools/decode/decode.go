package decode

import (
	errs "LiveGateway/tools/errs"

	"github.com/mitchellh/mapstructure"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 是否启用宽松解码（默认 true）：
	// 例如 "123" -> int、1.0 -> int64 等。
	WeaklyTypedInput bool
}

// DefaultOptions 返回默认选项。
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// DecodeMap 将 map[string]any 动态解码到任意结构体 T。
// T 通常是业务负载，例如 IdentifyPayload / ChatSendPayload 等。
// 结构体字段读取使用 `json` tag；失败统一归为参数错误（ArgsError）。
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, errs.ErrArgs.WrapMsg("payload map is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "build decoder")
	}
	if err := dec.Decode(m); err != nil {
		argErr := errs.ErrArgs.WithDetail(err.Error())
		return nil, argErr.Wrap()
	}
	return &out, nil
}
