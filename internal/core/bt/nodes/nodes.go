// Package nodes provides the stock node kinds every tree template can use.
package nodes

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"

	"github.com/zeusync/btcore/internal/core/blackboard"
	"github.com/zeusync/btcore/internal/core/bt"
	"github.com/zeusync/btcore/internal/core/observability/log"
)

const (
	KindWait      = "wait"
	KindLog       = "log"
	KindFork      = "fork"
	KindRandom    = "random"
	KindCondition = "condition"
	KindSet       = "set"
	KindFail      = "fail"
)

var (
	// ErrNoBlackboard is returned by blackboard-backed kinds when the executor
	// does not implement BlackboardProvider.
	ErrNoBlackboard = errors.New("executor has no blackboard")
	ErrBadParams    = errors.New("invalid node params")
)

// BlackboardProvider is implemented by executors that expose scratch data to nodes.
type BlackboardProvider interface {
	Blackboard() blackboard.Blackboard
}

// RegisterBuiltins adds every stock kind to reg.
func RegisterBuiltins(reg *bt.Registry) {
	reg.Register(KindWait, NewWait)
	reg.Register(KindLog, NewLog)
	reg.Register(KindFork, NewFork)
	reg.Register(KindRandom, NewRandom)
	reg.Register(KindCondition, NewCondition)
	reg.Register(KindSet, NewSet)
	reg.Register(KindFail, NewFail)
}

func boardOf(ctx *bt.Context) (blackboard.Blackboard, error) {
	p, ok := ctx.Executor.(BlackboardProvider)
	if !ok || p.Blackboard() == nil {
		return nil, ErrNoBlackboard
	}
	return p.Blackboard(), nil
}

// wait

type waitParams struct {
	Seconds float64 `mapstructure:"seconds"`
}

type wait struct {
	bt.Base
	seconds float64
	elapsed float64
}

// NewWait builds a kind that stays Running until the given number of seconds
// of tick delta has accumulated.
func NewWait(params map[string]any) (bt.Kind, error) {
	var p waitParams
	if err := decode(KindWait, params, &p); err != nil {
		return nil, err
	}
	if p.Seconds < 0 || math.IsNaN(p.Seconds) {
		return nil, fmt.Errorf("%w: wait seconds must be a non-negative number", ErrBadParams)
	}
	return bt.NewKind(KindWait, params, func() bt.Behavior { return &wait{seconds: p.Seconds} }), nil
}

func (w *wait) OnEnter(*bt.Context) error {
	w.elapsed = 0
	return nil
}

func (w *wait) OnUpdate(_ *bt.Context, delta float64) error {
	w.elapsed += delta
	return nil
}

func (w *wait) IsExecutionDone(*bt.Context) (bool, error) {
	return w.elapsed >= w.seconds, nil
}

// log

type logParams struct {
	Message string `mapstructure:"message"`
	Level   string `mapstructure:"level"`
}

type logNode struct {
	bt.Base
	message string
	level   log.Level
}

func NewLog(params map[string]any) (bt.Kind, error) {
	var p logParams
	if err := decode(KindLog, params, &p); err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(p.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadParams, err)
	}
	if level == log.LevelFatal {
		return nil, fmt.Errorf("%w: log level fatal is not allowed in a tree", ErrBadParams)
	}
	return bt.NewKind(KindLog, params, func() bt.Behavior {
		return &logNode{message: p.Message, level: level}
	}), nil
}

func (l *logNode) OnEnter(ctx *bt.Context) error {
	ctx.Logger().Log(l.level, l.message, log.Any("executor", ctx.Executor))
	return nil
}

// fork

type fork struct{ bt.Base }

// NewFork builds a kind that finishes at once and activates all of its
// children together. It takes no params.
func NewFork(params map[string]any) (bt.Kind, error) {
	if err := decode(KindFork, params, &struct{}{}); err != nil {
		return nil, err
	}
	return bt.NewKind(KindFork, params, func() bt.Behavior { return &fork{} }), nil
}

// random

type randomParams struct {
	Seed    *uint64   `mapstructure:"seed"`
	Weights []float64 `mapstructure:"weights"`
}

type random struct {
	bt.Base
	rng     *rand.Rand
	weights []float64
}

// NewRandom builds a kind that activates exactly one child, picked by weight.
// Children without a weight count as 1. A fixed seed makes the choice
// reproducible per node instance.
func NewRandom(params map[string]any) (bt.Kind, error) {
	var p randomParams
	if err := decode(KindRandom, params, &p); err != nil {
		return nil, err
	}
	for _, w := range p.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: random weights must be finite and non-negative", ErrBadParams)
		}
	}
	return bt.NewKind(KindRandom, params, func() bt.Behavior {
		var src rand.Source
		if p.Seed != nil {
			src = rand.NewPCG(*p.Seed, *p.Seed)
		} else {
			src = rand.NewPCG(rand.Uint64(), rand.Uint64())
		}
		return &random{rng: rand.New(src), weights: p.Weights}
	}), nil
}

func (r *random) OnExit(ctx *bt.Context, final bt.State) (bool, error) {
	children := ctx.Children()
	if final != bt.StateSuccess || len(children) == 0 {
		ctx.Tree.ResetMachine()
		return true, nil
	}
	ctx.Tree.SetCurrentNodes(children[r.pick(len(children))])
	return true, nil
}

func (r *random) pick(n int) int {
	weights := make([]float64, n)
	total := 0.0
	for i := range weights {
		weights[i] = 1
		if i < len(r.weights) {
			weights[i] = r.weights[i]
		}
		total += weights[i]
	}
	if total == 0 {
		return r.rng.IntN(n)
	}
	x := r.rng.Float64() * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return n - 1
}

// condition

type conditionParams struct {
	Key    string `mapstructure:"key"`
	Equals any    `mapstructure:"equals"`
}

type condition struct {
	bt.Base
	key    string
	equals any
}

// NewCondition builds a kind that succeeds when the executor's blackboard
// holds equals under key and fails otherwise. equals defaults to true.
func NewCondition(params map[string]any) (bt.Kind, error) {
	var p conditionParams
	if err := decode(KindCondition, params, &p); err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, fmt.Errorf("%w: condition key is required", ErrBadParams)
	}
	if p.Equals == nil {
		p.Equals = true
	}
	return bt.NewKind(KindCondition, params, func() bt.Behavior {
		return &condition{key: p.Key, equals: p.Equals}
	}), nil
}

func (c *condition) OnUpdate(ctx *bt.Context, _ float64) error {
	bb, err := boardOf(ctx)
	if err != nil {
		return err
	}
	v, ok := bb.Get(c.key)
	if !ok || !matches(v, c.equals) {
		ctx.Fail()
	}
	return nil
}

// matches compares numbers by value so an int on the blackboard equals a
// float read from a template.
func matches(a, b any) bool {
	fa, aNum := number(a)
	fb, bNum := number(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// set

type setParams struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

type set struct {
	bt.Base
	key   string
	value any
}

func NewSet(params map[string]any) (bt.Kind, error) {
	var p setParams
	if err := decode(KindSet, params, &p); err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, fmt.Errorf("%w: set key is required", ErrBadParams)
	}
	return bt.NewKind(KindSet, params, func() bt.Behavior { return &set{key: p.Key, value: p.Value} }), nil
}

func (s *set) OnUpdate(ctx *bt.Context, _ float64) error {
	bb, err := boardOf(ctx)
	if err != nil {
		return err
	}
	bb.Set(s.key, s.value)
	return nil
}

// fail

type failParams struct {
	Reason string `mapstructure:"reason"`
}

type fail struct {
	bt.Base
	reason string
}

func NewFail(params map[string]any) (bt.Kind, error) {
	var p failParams
	if err := decode(KindFail, params, &p); err != nil {
		return nil, err
	}
	return bt.NewKind(KindFail, params, func() bt.Behavior { return &fail{reason: p.Reason} }), nil
}

func (f *fail) OnUpdate(ctx *bt.Context, _ float64) error {
	ctx.Logger().Debug("node failed on purpose", log.String("reason", f.reason))
	ctx.Fail()
	return nil
}

func (f *fail) OnExit(ctx *bt.Context, _ bt.State) (bool, error) {
	ctx.Tree.ResetMachine()
	return true, nil
}
