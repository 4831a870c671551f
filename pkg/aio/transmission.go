package aio

import (
	"time"
)

// Curve
// wait timeouts by completions reaped since the last wait. the more completions,
// the shorter the next wait.
type Curve []struct {
	N       uint32
	Timeout time.Duration
}

var defaultCurve = Curve{
	{1, 15 * time.Second},
	{32, 100 * time.Microsecond},
	{64, 200 * time.Microsecond},
	{96, 500 * time.Microsecond},
}

type Transmission interface {
	Match(n uint32) time.Duration
}

func NewCurveTransmission(curve Curve) Transmission {
	if len(curve) == 0 {
		curve = Curve{{1, 15 * time.Second}}
	}
	times := make([]waitNTime, 0, len(curve))
	for _, t := range curve {
		if t.N < 1 || t.Timeout < 1 {
			continue
		}
		times = append(times, waitNTime{
			n:       t.N,
			timeout: t.Timeout,
		})
	}
	if len(times) == 0 {
		times = append(times, waitNTime{n: 1, timeout: 15 * time.Second})
	}
	return &CurveTransmission{
		curve: times,
		size:  len(times),
	}
}

type waitNTime struct {
	n       uint32
	timeout time.Duration
}

type CurveTransmission struct {
	curve []waitNTime
	size  int
}

func (tran *CurveTransmission) Match(n uint32) time.Duration {
	if n == 0 || tran.size == 1 {
		return tran.curve[0].timeout
	}
	for i := 1; i < tran.size; i++ {
		ln := tran.curve[i-1]
		rn := tran.curve[i]
		if ln.n <= n && n < rn.n {
			return ln.timeout
		}
	}
	return tran.curve[tran.size-1].timeout
}
