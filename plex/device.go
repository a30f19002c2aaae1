package plex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Client is a controllable player device currently connected to the server.
type Client struct {
	srv *Server

	Name                 string
	Host                 string
	Address              string
	Port                 int
	MachineIdentifier    string
	Product              string
	Version              string
	Protocol             string
	DeviceClass          string
	ProtocolVersion      string
	ProtocolCapabilities []string
}

// Clients lists the player devices connected to the server.
func (s *Server) Clients(ctx context.Context) ([]*Client, error) {
	cont, err := s.Query(ctx, http.MethodGet, "/clients", nil)
	if err != nil {
		return nil, err
	}
	if cont == nil {
		return nil, nil
	}
	clients := make([]*Client, 0, len(cont.Children))
	for _, ch := range cont.Children {
		c, err := parseClient(s, ch)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// Client returns the connected player device with the given name.
func (s *Server) Client(ctx context.Context, name string) (*Client, error) {
	clients, err := s.Clients(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no client named %q", ErrNotFound, name)
}

func parseClient(srv *Server, el *Element) (*Client, error) {
	d := DecodeAttrs(el)
	c := &Client{
		srv:                  srv,
		Name:                 d.String("name"),
		Host:                 d.String("host"),
		Address:              d.String("address"),
		Port:                 d.Int("port"),
		MachineIdentifier:    d.String("machineIdentifier"),
		Product:              d.String("product"),
		Version:              d.String("version"),
		Protocol:             d.String("protocol"),
		DeviceClass:          d.String("deviceClass"),
		ProtocolVersion:      d.String("protocolVersion"),
		ProtocolCapabilities: d.List("protocolCapabilities"),
	}
	return c, d.Err()
}

// Supports reports whether the client advertises a protocol capability
// (playback, navigation, timeline, playqueues, mirror).
func (c *Client) Supports(capability string) bool {
	for _, cap := range c.ProtocolCapabilities {
		if strings.EqualFold(cap, capability) {
			return true
		}
	}
	return false
}
