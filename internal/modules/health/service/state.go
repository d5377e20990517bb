package service

import (
	"sync/atomic"
	"time"

	chartstate "chart_sync/internal/modules/chartstate/service"
)

// State — атомарный слепок для health-эндпоинтов. Session loop публикует
// сюда после каждого события; HTTP-хэндлеры читают из своих горутин.
type State struct {
	startedAt time.Time

	ready          atomic.Bool
	status         atomic.Int32
	runnerAttached atomic.Bool
	lastBarTime    atomic.Int64
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetStatus(st chartstate.ConnStatus) { s.status.Store(int32(st)) }
func (s *State) Status() chartstate.ConnStatus      { return chartstate.ConnStatus(s.status.Load()) }

func (s *State) SetRunnerAttached(v bool) { s.runnerAttached.Store(v) }
func (s *State) RunnerAttached() bool     { return s.runnerAttached.Load() }

func (s *State) SetLastBarTime(t int64) { s.lastBarTime.Store(t) }
func (s *State) LastBarTime() int64     { return s.lastBarTime.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
