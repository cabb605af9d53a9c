package mock

import (
	"context"
	"fmt"
	"sync"

	"stereoguard/internal/domain"
)

// ToggleCall records one SetServiceState call.
type ToggleCall struct {
	DeviceID string
	Service  domain.ServiceID
	Enabled  bool
	Err      error
}

type toggleKey struct {
	deviceID string
	service  domain.ServiceID
	enabled  bool
}

// BluetoothSystem holds paired devices and their service states.
type BluetoothSystem struct {
	mu          sync.Mutex
	devices     []domain.BluetoothDeviceInfo
	services    map[string][]domain.ServiceID
	enabled     map[string]map[domain.ServiceID]bool
	failures    map[toggleKey]int
	servicesErr map[string]error
	pairedErr   error
	calls       []ToggleCall
	onToggle    func(call ToggleCall)
}

func NewBluetoothSystem() *BluetoothSystem {
	return &BluetoothSystem{
		services:    make(map[string][]domain.ServiceID),
		enabled:     make(map[string]map[domain.ServiceID]bool),
		failures:    make(map[toggleKey]int),
		servicesErr: make(map[string]error),
	}
}

// AddDevice pairs a device with the given services, all enabled.
func (b *BluetoothSystem) AddDevice(device domain.BluetoothDeviceInfo, services ...domain.ServiceID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, device)
	b.services[device.ID] = append([]domain.ServiceID(nil), services...)
	state := make(map[domain.ServiceID]bool, len(services))
	for _, s := range services {
		state[s] = true
	}
	b.enabled[device.ID] = state
}

// FailToggle makes the next times calls for (device, service, enabled) fail.
func (b *BluetoothSystem) FailToggle(deviceID string, service domain.ServiceID, enabled bool, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[toggleKey{deviceID, service, enabled}] = times
}

func (b *BluetoothSystem) FailServices(deviceID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servicesErr[deviceID] = err
}

func (b *BluetoothSystem) FailPaired(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pairedErr = err
}

// OnToggle runs fn after every SetServiceState call, outside the lock.
func (b *BluetoothSystem) OnToggle(fn func(call ToggleCall)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onToggle = fn
}

func (b *BluetoothSystem) Calls() []ToggleCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ToggleCall(nil), b.calls...)
}

// Enabled reports the current state of a service.
func (b *BluetoothSystem) Enabled(deviceID string, service domain.ServiceID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled[deviceID][service]
}

func (b *BluetoothSystem) PairedDevices(_ context.Context) ([]domain.BluetoothDeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pairedErr != nil {
		return nil, b.pairedErr
	}
	return append([]domain.BluetoothDeviceInfo(nil), b.devices...), nil
}

func (b *BluetoothSystem) InstalledServices(_ context.Context, device domain.BluetoothDeviceInfo) ([]domain.ServiceID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.servicesErr[device.ID]; err != nil {
		return nil, err
	}
	return append([]domain.ServiceID(nil), b.services[device.ID]...), nil
}

func (b *BluetoothSystem) SetServiceState(_ context.Context, device domain.BluetoothDeviceInfo, service domain.ServiceID, enabled bool) error {
	b.mu.Lock()
	key := toggleKey{device.ID, service, enabled}
	var err error
	if n := b.failures[key]; n > 0 {
		b.failures[key] = n - 1
		err = fmt.Errorf("toggle %s on %s refused", service, device.ID)
	} else if state, ok := b.enabled[device.ID]; ok {
		state[service] = enabled
	} else {
		err = errNotFound
	}
	call := ToggleCall{DeviceID: device.ID, Service: service, Enabled: enabled, Err: err}
	b.calls = append(b.calls, call)
	hook := b.onToggle
	b.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return err
}
