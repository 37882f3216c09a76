package task

import "errors"

// 任务生命周期操作返回的错误分类。
//
// ErrNotFound 对“任务不存在”与“任务属于其他用户”不做区分，
// 避免通过错误信息探测任务是否存在。
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("task not found")
	ErrArchived   = errors.New("task is archived")
)
