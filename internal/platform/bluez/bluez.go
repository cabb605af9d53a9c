// Package bluez implements the Bluetooth subsystem over BlueZ's D-Bus API.
package bluez

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
)

const (
	busName       = "org.bluez"
	deviceIface   = "org.bluez.Device1"
	objectManager = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// System implements ports.BluetoothSystem. Device IDs are BlueZ object paths.
type System struct {
	conn *dbus.Conn
	log  zerolog.Logger
}

// Connect opens the system bus and checks that BlueZ owns its name.
func Connect(log zerolog.Logger) (*System, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	for _, n := range names {
		if n == busName {
			return &System{conn: conn, log: log}, nil
		}
	}
	conn.Close()
	return nil, fmt.Errorf("%s not found on system bus, is bluetooth.service running?", busName)
}

func (s *System) Close() error {
	return s.conn.Close()
}

func (s *System) PairedDevices(ctx context.Context) ([]domain.BluetoothDeviceInfo, error) {
	objects, err := s.objects(ctx)
	if err != nil {
		return nil, err
	}
	return pairedDevices(objects), nil
}

func (s *System) InstalledServices(ctx context.Context, device domain.BluetoothDeviceInfo) ([]domain.ServiceID, error) {
	objects, err := s.objects(ctx)
	if err != nil {
		return nil, err
	}
	props, ok := objects[dbus.ObjectPath(device.ID)][deviceIface]
	if !ok {
		return nil, fmt.Errorf("device %s is gone", device.ID)
	}
	return serviceIDs(props, s.log), nil
}

// SetServiceState connects or disconnects one profile of the device.
func (s *System) SetServiceState(ctx context.Context, device domain.BluetoothDeviceInfo, service domain.ServiceID, enabled bool) error {
	method := deviceIface + ".DisconnectProfile"
	if enabled {
		method = deviceIface + ".ConnectProfile"
	}
	obj := s.conn.Object(busName, dbus.ObjectPath(device.ID))
	if err := obj.CallWithContext(ctx, method, 0, service.String()).Err; err != nil {
		return fmt.Errorf("%s %s on %s: %w", method, service, device.Name, err)
	}
	return nil
}

func (s *System) objects(ctx context.Context) (managedObjects, error) {
	var objects managedObjects
	obj := s.conn.Object(busName, "/")
	if err := obj.CallWithContext(ctx, objectManager, 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return objects, nil
}

func pairedDevices(objects managedObjects) []domain.BluetoothDeviceInfo {
	var out []domain.BluetoothDeviceInfo
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		if paired, _ := props["Paired"].Value().(bool); !paired {
			continue
		}
		name, _ := props["Alias"].Value().(string)
		if strings.TrimSpace(name) == "" {
			name, _ = props["Name"].Value().(string)
		}
		address, _ := props["Address"].Value().(string)
		out = append(out, domain.BluetoothDeviceInfo{ID: string(path), Name: name, Address: address})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// serviceIDs returns the connectable audio profiles a device advertises.
func serviceIDs(props map[string]dbus.Variant, log zerolog.Logger) []domain.ServiceID {
	raw, _ := props["UUIDs"].Value().([]string)
	out := make([]domain.ServiceID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			log.Debug().Str("uuid", s).Msg("skipping malformed service uuid")
			continue
		}
		if !audioProfile(id) {
			log.Debug().Str("uuid", s).Msg("skipping non-audio service")
			continue
		}
		out = append(out, id)
	}
	return out
}

// audioProfile reports whether BlueZ can connect id on its own. Devices also
// list PnP, GATT and vendor UUIDs that have no profile handler and reject
// ConnectProfile.
func audioProfile(id domain.ServiceID) bool {
	switch id {
	case domain.ServiceAudioSource, domain.ServiceAudioSink,
		domain.ServiceRemoteTarget, domain.ServiceRemoteControl,
		domain.ServiceHeadset, domain.ServiceHeadsetGateway,
		domain.ServiceHandsFree, domain.ServiceHandsFreeGateway:
		return true
	}
	return false
}
