package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// ErrScripted はMockHandleが失敗を返すときの既定エラー
var ErrScripted = errors.New("mock: scripted retrieval failure")

// ConcurrencyProbe は同時に実行中のデバイス呼び出し数を記録する
type ConcurrencyProbe struct {
	inflight atomic.Int32
	max      atomic.Int32
}

func (p *ConcurrencyProbe) enter() {
	n := p.inflight.Add(1)
	for {
		m := p.max.Load()
		if n <= m || p.max.CompareAndSwap(m, n) {
			return
		}
	}
}

func (p *ConcurrencyProbe) leave() {
	p.inflight.Add(-1)
}

// Max はこれまでの最大同時実行数を返す
func (p *ConcurrencyProbe) Max() int {
	return int(p.max.Load())
}

// MockBus はテスト用のモックBus実装
type MockBus struct {
	mu         sync.Mutex
	handles    map[Serial]*MockHandle
	lookupErrs map[Serial]error
	connectErr map[Serial]error
	calls      int

	// Probe は全ハンドルのStartCapture/RetrieveBufferの同時実行数を記録する
	Probe *ConcurrencyProbe
}

// NewMockBus は指定したシリアル番号のカメラを持つMockBusを作成する
func NewMockBus(serials ...Serial) *MockBus {
	b := &MockBus{
		handles:    make(map[Serial]*MockHandle),
		lookupErrs: make(map[Serial]error),
		connectErr: make(map[Serial]error),
		Probe:      &ConcurrencyProbe{},
	}
	for _, s := range serials {
		b.handles[s] = newMockHandle(s, b.Probe)
	}
	return b
}

// Handle はシリアル番号のモックハンドルを返す（テストからの挙動設定用）
func (b *MockBus) Handle(serial Serial) *MockHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handles[serial]
}

// FailLookup はテスト用にLookupSerialの失敗を設定する
func (b *MockBus) FailLookup(serial Serial, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookupErrs[serial] = err
}

// FailConnect はテスト用にConnectの失敗を設定する
func (b *MockBus) FailConnect(serial Serial, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectErr[serial] = err
}

// Calls はバスに対する呼び出し回数を返す
func (b *MockBus) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// NumCameras はモックカメラの台数を返す
func (b *MockBus) NumCameras(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return len(b.handles), nil
}

// LookupSerial はシリアル番号からGUIDを返す
func (b *MockBus) LookupSerial(_ context.Context, serial Serial) (GUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	if err := b.lookupErrs[serial]; err != nil {
		return "", err
	}
	if _, ok := b.handles[serial]; !ok {
		return "", ErrNotFound
	}
	return GUID(fmt.Sprintf("mock-%d", serial)), nil
}

// Connect はモックハンドルを返す
func (b *MockBus) Connect(_ context.Context, guid GUID) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	var serial Serial
	if _, err := fmt.Sscanf(string(guid), "mock-%d", &serial); err != nil {
		return nil, fmt.Errorf("無効なGUID: %s", guid)
	}
	if err := b.connectErr[serial]; err != nil {
		return nil, err
	}
	h, ok := b.handles[serial]
	if !ok {
		return nil, ErrNotFound
	}
	h.mu.Lock()
	h.connects++
	h.mu.Unlock()
	return h, nil
}

// MockHandle はテスト用のモックHandle実装
type MockHandle struct {
	serial Serial
	probe  *ConcurrencyProbe

	mu        sync.Mutex
	outcomes  []error
	next      int
	exhausted func()
	delay     time.Duration
	startErr  error
	stopErr   error

	connects    int
	starts      int
	stops       int
	disconnects int
	retrieves   int
}

func newMockHandle(serial Serial, probe *ConcurrencyProbe) *MockHandle {
	return &MockHandle{serial: serial, probe: probe}
}

// Script はRetrieveBufferの結果を順番に設定する（nilは成功）
// 使い切った後は成功を返し続ける。OnExhaustedが設定されていれば1度だけ呼んでから失敗を返す
func (m *MockHandle) Script(outcomes ...error) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = outcomes
	m.next = 0
	return m
}

// OnExhausted は結果を使い切ったときに呼ぶ関数を設定する
func (m *MockHandle) OnExhausted(fn func()) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted = fn
	return m
}

// SetDelay はデバイス呼び出しにかかる時間を設定する
func (m *MockHandle) SetDelay(d time.Duration) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// SetStartError はテスト用にStartCaptureの失敗を設定する
func (m *MockHandle) SetStartError(err error) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
	return m
}

// SetStopError はテスト用にStopCaptureの失敗を設定する
func (m *MockHandle) SetStopError(err error) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
	return m
}

// MockCounts はモックハンドルの呼び出し回数
type MockCounts struct {
	Connects    int
	Starts      int
	Stops       int
	Disconnects int
	Retrieves   int
}

// Counts は呼び出し回数を返す
func (m *MockHandle) Counts() MockCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockCounts{
		Connects:    m.connects,
		Starts:      m.starts,
		Stops:       m.stops,
		Disconnects: m.disconnects,
		Retrieves:   m.retrieves,
	}
}

func (m *MockHandle) Serial() Serial {
	return m.serial
}

func (m *MockHandle) StartCapture(ctx context.Context) error {
	m.probe.enter()
	defer m.probe.leave()

	m.mu.Lock()
	m.starts++
	err := m.startErr
	delay := m.delay
	m.mu.Unlock()

	if err := sleepContext(ctx, delay); err != nil {
		return err
	}
	return err
}

func (m *MockHandle) RetrieveBuffer(ctx context.Context) (*Frame, error) {
	m.probe.enter()
	defer m.probe.leave()

	m.mu.Lock()
	m.retrieves++
	delay := m.delay
	var outcome error
	var hook func()
	if m.next < len(m.outcomes) {
		outcome = m.outcomes[m.next]
		m.next++
	} else if m.exhausted != nil {
		hook = m.exhausted
		m.exhausted = nil
		outcome = context.Canceled
	}
	m.mu.Unlock()

	if hook != nil {
		hook()
		return nil, outcome
	}

	if err := sleepContext(ctx, delay); err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}

	return &Frame{
		Image:     image.NewGray(image.Rect(0, 0, 4, 4)),
		Timestamp: time.Now(),
	}, nil
}

func (m *MockHandle) StopCapture(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return m.stopErr
}

func (m *MockHandle) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	return nil
}

// sleepContext はコンテキストのキャンセルを見ながら待つ
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
