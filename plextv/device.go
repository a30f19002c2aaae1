package plextv

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nesati/goplex/plex"
)

// Device is an entry of the account's device list, the flat registry behind
// https://plex.tv/devices.xml. Unlike resources, devices advertise bare
// connection URIs and carry their own token.
type Device struct {
	account *Account

	ID               int
	Name             string
	Product          string
	ProductVersion   string
	Platform         string
	PlatformVersion  string
	Device           string
	Model            string
	Vendor           string
	Provides         []string
	ClientIdentifier string
	Version          string
	Token            string
	PublicAddress    string
	ScreenResolution string
	ScreenDensity    string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	Connections      []string
}

// Devices lists every device registered to the account.
func (a *Account) Devices(ctx context.Context) ([]*Device, error) {
	root, err := a.query(ctx, http.MethodGet, "/devices.xml", nil)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: device listing returned an empty body", plex.ErrSchemaMismatch)
	}

	var devices []*Device
	for _, el := range root.FindAll("Device") {
		dev, err := a.parseDevice(el)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	a.logger.Debug().Int("count", len(devices)).Msg("fetched plex.tv devices")
	return devices, nil
}

// Device finds one device by name or client identifier.
func (a *Account) Device(ctx context.Context, name string) (*Device, error) {
	devices, err := a.Devices(ctx)
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if strings.EqualFold(dev.Name, name) || dev.ClientIdentifier == name {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: device %q", plex.ErrNotFound, name)
}

func (a *Account) parseDevice(el *plex.Element) (*Device, error) {
	d := plex.DecodeAttrs(el)
	dev := &Device{
		account:          a,
		ID:               d.Int("id"),
		Name:             d.String("name"),
		Product:          d.String("product"),
		ProductVersion:   d.String("productVersion"),
		Platform:         d.String("platform"),
		PlatformVersion:  d.String("platformVersion"),
		Device:           d.String("device"),
		Model:            d.String("model"),
		Vendor:           d.String("vendor"),
		Provides:         d.List("provides"),
		ClientIdentifier: d.String("clientIdentifier"),
		Version:          d.String("version"),
		Token:            d.String("token"),
		PublicAddress:    d.String("publicAddress"),
		ScreenResolution: d.String("screenResolution"),
		ScreenDensity:    d.String("screenDensity"),
		CreatedAt:        d.UnixTime("createdAt"),
		LastSeenAt:       d.UnixTime("lastSeenAt"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	for _, conn := range el.FindAll("Connection") {
		if uri, ok := conn.Attr("uri"); ok && uri != "" {
			dev.Connections = append(dev.Connections, uri)
		}
	}
	return dev, nil
}

// Connect opens a plex.Server session against this device using its own
// token, probing the advertised URIs in parallel.
func (d *Device) Connect(ctx context.Context, opts ...plex.ServerOption) (*plex.Server, error) {
	if len(d.Connections) == 0 {
		return nil, fmt.Errorf("%w: device %q advertises no addresses", plex.ErrNoConnection, d.Name)
	}
	return raceConnect(ctx, d.account.logger, "device", d.Name, d.Connections, d.Token, opts)
}

// Delete removes the device from the account.
func (d *Device) Delete(ctx context.Context) error {
	path := fmt.Sprintf("/devices/%d.xml", d.ID)
	if _, err := d.account.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	d.account.logger.Info().Str("device", d.Name).Int("id", d.ID).Msg("deleted plex.tv device")
	return nil
}
