// Package uring is the process wide entry of the reactor.
//
// It holds one reference counted aio.Reactor over the best engine the
// platform offers, and turns submissions into rxp futures.
package uring

import (
	"sync"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/aio"
	"github.com/brickingsoft/uring/pkg/ring"
)

var (
	presetLocker       sync.Mutex
	presetOptions      []aio.Option
	presetEngine       EngineFactory
	presetCloseTimeout = 30 * time.Second
)

// EngineFactory
// creates the engine of the default reactor.
type EngineFactory func() (ring.Engine, error)

// Preset
// 预设默认 aio.Reactor 的选项。
// 注意：只对之后创建的 Reactor 有效。
func Preset(options ...aio.Option) {
	presetLocker.Lock()
	presetOptions = append(presetOptions, options...)
	presetLocker.Unlock()
}

// PresetConfig
// 从 yaml 文件加载选项并预设。
func PresetConfig(path string) error {
	config, err := aio.LoadConfig(path)
	if err != nil {
		return err
	}
	options, optionsErr := config.Options()
	if optionsErr != nil {
		return optionsErr
	}
	Preset(options...)
	return nil
}

// UseEngine
// 替换默认的引擎选择, nil 则恢复默认 (io_uring 优先, 不可用时使用 loopback)。
func UseEngine(factory EngineFactory) {
	presetLocker.Lock()
	presetEngine = factory
	presetLocker.Unlock()
}

// UseCloseTimeout
// 最后一个引用释放时关闭 Reactor 的最长等待时间。
func UseCloseTimeout(timeout time.Duration) {
	if timeout < 1 {
		return
	}
	presetLocker.Lock()
	presetCloseTimeout = timeout
	presetLocker.Unlock()
}

// ResetPreset
// clears what Preset, PresetConfig, UseEngine and UseCloseTimeout set.
func ResetPreset() {
	presetLocker.Lock()
	presetOptions = nil
	presetEngine = nil
	presetCloseTimeout = 30 * time.Second
	presetLocker.Unlock()
}

func createReactor() (*aio.Reactor, error) {
	presetLocker.Lock()
	options := append([]aio.Option(nil), presetOptions...)
	factory := presetEngine
	presetLocker.Unlock()

	if factory == nil {
		return newDefaultReactor(options)
	}
	engine, err := factory()
	if err != nil {
		return nil, errors.From(ErrEngine, errors.WithWrap(err))
	}
	return aio.New(engine, options...)
}
