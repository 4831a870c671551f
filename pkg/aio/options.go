package aio

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type DriverMode int

const (
	// PollDriver
	// a dedicated goroutine reaps completions.
	PollDriver DriverMode = iota
	// CooperativeDriver
	// waiters reap completions on behalf of each other.
	CooperativeDriver
)

func (mode DriverMode) String() string {
	switch mode {
	case PollDriver:
		return "poll"
	case CooperativeDriver:
		return "cooperative"
	default:
		return "unknown"
	}
}

type Options struct {
	// Entries
	// 提交队列大小
	Entries uint32
	// CompletionEntries
	// 完成队列大小, 同时也是最大在途数
	CompletionEntries uint32
	// MaxOrphans
	// 同时存在的孤儿操作上限
	MaxOrphans int
	// Driver
	// 驱动方式
	Driver DriverMode
	// PollCPU
	// 轮询线程绑定的 CPU, -1 为不绑定
	PollCPU int
	// PollLockOSThread
	// 轮询协程是否锁定线程
	PollLockOSThread bool
	// WaitCurve
	// 轮询等待曲线
	WaitCurve Curve
	// ReapBatch
	// 单次收割的完成数上限
	ReapBatch int
	// CooperativeBudget
	// 协作模式下每次等待的收割次数
	CooperativeBudget int
	// CooperativeWait
	// 协作模式下无完成时的等待时长
	CooperativeWait time.Duration
	// SubmitTimeout
	// 背压时提交等待上限, 0 为由 ctx 决定
	SubmitTimeout time.Duration
	// BackpressureBackoff
	// 背压时的重试间隔
	BackpressureBackoff time.Duration
	Logger              logrus.FieldLogger
	Registerer          prometheus.Registerer
	MetricsNamespace    string
}

type Option func(*Options)

func defaultOptions() Options {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return Options{
		Entries:             256,
		Driver:              PollDriver,
		PollCPU:             -1,
		WaitCurve:           defaultCurve,
		ReapBatch:           256,
		CooperativeBudget:   4,
		CooperativeWait:     time.Millisecond,
		BackpressureBackoff: time.Millisecond,
		Logger:              logger,
		MetricsNamespace:    "uring",
	}
}

// WithEntries
// setup submission queue size, the completion queue defaults to twice of it.
func WithEntries(entries uint32) Option {
	return func(opts *Options) {
		opts.Entries = entries
	}
}

// WithCompletionEntries
// setup completion queue size, it bounds the in-flight operations.
func WithCompletionEntries(entries uint32) Option {
	return func(opts *Options) {
		opts.CompletionEntries = entries
	}
}

// WithMaxOrphans
// setup how many canceled operations may wait for their completion at once.
func WithMaxOrphans(n int) Option {
	return func(opts *Options) {
		opts.MaxOrphans = n
	}
}

// WithPollDriver
// setup a dedicated reaping goroutine. cpu > -1 locks it to an os thread bound to cpu.
func WithPollDriver(cpu int, curve Curve) Option {
	return func(opts *Options) {
		opts.Driver = PollDriver
		opts.PollCPU = cpu
		if cpu > -1 {
			opts.PollLockOSThread = true
		}
		if len(curve) > 0 {
			opts.WaitCurve = curve
		}
	}
}

// WithCooperativeDriver
// setup waiters to reap, budget bounds reap passes per wait round.
func WithCooperativeDriver(budget int, wait time.Duration) Option {
	return func(opts *Options) {
		opts.Driver = CooperativeDriver
		if budget > 0 {
			opts.CooperativeBudget = budget
		}
		if wait > 0 {
			opts.CooperativeWait = wait
		}
	}
}

func WithReapBatch(n int) Option {
	return func(opts *Options) {
		opts.ReapBatch = n
	}
}

// WithSubmitTimeout
// setup how long a submission may wait for a free slot.
func WithSubmitTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.SubmitTimeout = timeout
	}
}

func WithBackpressureBackoff(backoff time.Duration) Option {
	return func(opts *Options) {
		opts.BackpressureBackoff = backoff
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics
// registers reactor metrics on registerer.
func WithMetrics(registerer prometheus.Registerer, namespace string) Option {
	return func(opts *Options) {
		opts.Registerer = registerer
		if namespace != "" {
			opts.MetricsNamespace = namespace
		}
	}
}
