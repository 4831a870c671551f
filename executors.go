package uring

import (
	"runtime"
	"sync"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
)

var (
	executors       rxp.Executors = nil
	executorsLocker sync.Mutex
)

// Startup
// 启动执行器
//
// Submit 的结果通过 rxp.Executors 异步回调。
// 默认提供一个执行器，如果需要定制化，则使用 Startup 完成。
// 关闭超时通过 rxp.WithCloseTimeout 设置。
// 注意：已存在执行器时返回 ErrExecutors，需先 Shutdown。
func Startup(options ...rxp.Option) error {
	executorsLocker.Lock()
	defer executorsLocker.Unlock()
	if executors != nil {
		return errors.From(ErrExecutors, errors.WithMeta("executors", "running"))
	}
	exec, err := rxp.New(options...)
	if err != nil {
		return errors.From(ErrExecutors, errors.WithWrap(err))
	}
	executors = exec
	return nil
}

// Shutdown
// 关闭执行器, 等待正在执行的任务结束, 超时由 rxp.WithCloseTimeout 决定。
// 之后的 Submit 会创建新的默认执行器。
func Shutdown() error {
	executorsLocker.Lock()
	exec := executors
	executors = nil
	executorsLocker.Unlock()
	if exec == nil {
		return nil
	}
	runtime.SetFinalizer(exec, nil)
	if err := exec.Close(); err != nil {
		return errors.From(ErrExecutors, errors.WithWrap(err))
	}
	return nil
}

// Executors
// 获取执行器, 不存在时创建默认执行器。
func Executors() (rxp.Executors, error) {
	executorsLocker.Lock()
	defer executorsLocker.Unlock()
	if executors == nil {
		exec, err := rxp.New()
		if err != nil {
			return nil, errors.From(ErrExecutors, errors.WithWrap(err))
		}
		runtime.SetFinalizer(exec, rxp.Executors.Close)
		executors = exec
	}
	return executors, nil
}
