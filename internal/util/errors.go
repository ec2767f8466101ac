package util

import "errors"

var (
	ErrLockTimeout      = errors.New("存储锁获取超时")
	ErrCorruptDocument  = errors.New("document is corrupt or inconsistent")
	ErrNoMigrationPath  = errors.New("no migration path registered")
	ErrValidationFailed = errors.New("validation failed, store left unchanged")
	ErrNotFound         = errors.New("知识点不存在")
)
