// Package settings reads the platform's persisted key-value configuration.
// The gateway never caches: chat and stream rules are fetched fresh on every
// decision so that admin edits in the CMS take effect immediately.
package settings

import (
	"context"

	errs "LiveGateway/tools/errs"
)

// 平台设置键
const (
	KeyChatEnabled       = "live_chat_enabled"       // "true" / "false"
	KeyChatMode          = "live_chat_mode"          // "everyone" / "logged_in"
	KeyForbiddenKeywords = "live_chat_banned_words"  // 逗号分隔
	KeyStreamVisibility  = "live_stream_visibility"  // "public" / "logged_in"
)

var ErrNotFound = errs.New("setting not found")

// Setting is one record of the platform settings collection.
type Setting struct {
	Key   string `bson:"key" json:"key"`
	Value string `bson:"value" json:"value"`
}

// Store is the read-only settings collaborator.
type Store interface {
	// Get returns ErrNotFound when the key has never been configured.
	Get(ctx context.Context, key string) (*Setting, error)
}
