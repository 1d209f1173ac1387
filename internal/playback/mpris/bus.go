package mpris

import (
	"context"

	"github.com/godbus/dbus/v5"
)

const (
	busNamePrefix      = "org.mpris.MediaPlayer2."
	objectPath         = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface    = "org.mpris.MediaPlayer2.Player"
	propertiesIface    = "org.freedesktop.DBus.Properties"
	propertiesGet      = propertiesIface + ".Get"
	propertiesChanged  = "PropertiesChanged"
	listNamesMethod    = "org.freedesktop.DBus.ListNames"
	propPlaybackStatus = "PlaybackStatus"
	propMetadata       = "Metadata"
)

// bus is the subset of a D-Bus connection the observer uses.
type bus interface {
	ListNames(ctx context.Context) ([]string, error)
	GetProperty(ctx context.Context, dest, iface, prop string) (dbus.Variant, error)
	Subscribe(ch chan<- *dbus.Signal) error
	Close() error
}

type sessionBus struct {
	conn *dbus.Conn
}

func connectSessionBus() (bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &sessionBus{conn: conn}, nil
}

func (b *sessionBus) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := b.conn.BusObject().CallWithContext(ctx, listNamesMethod, 0).Store(&names); err != nil {
		return nil, err
	}
	return names, nil
}

func (b *sessionBus) GetProperty(ctx context.Context, dest, iface, prop string) (dbus.Variant, error) {
	var value dbus.Variant
	err := b.conn.Object(dest, objectPath).CallWithContext(ctx, propertiesGet, 0, iface, prop).Store(&value)
	return value, err
}

func (b *sessionBus) Subscribe(ch chan<- *dbus.Signal) error {
	if err := b.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember(propertiesChanged),
	); err != nil {
		return err
	}
	b.conn.Signal(ch)
	return nil
}

func (b *sessionBus) Close() error {
	return b.conn.Close()
}
