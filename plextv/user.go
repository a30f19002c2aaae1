package plextv

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nesati/goplex/plex"
)

// User is a friend or home member the account shares servers with.
type User struct {
	ID                int
	Title             string
	Username          string
	Email             string
	Thumb             string
	Home              bool
	Protected         bool
	Restricted        bool
	AllowSync         bool
	AllowCameraUpload bool
	AllowChannels     bool
	FilterAll         string
	FilterMovies      string
	FilterMusic       string
	FilterPhotos      string
	FilterTelevision  string
	Shares            []ServerShare
}

// ServerShare is one server of the account shared with a user.
type ServerShare struct {
	ID                int
	AccountID         int
	ServerID          int
	MachineIdentifier string
	Name              string
	LastSeenAt        time.Time
	NumLibraries      int
	AllLibraries      bool
	Owned             bool
	Pending           bool
}

// Users lists the friends and home members of the account together with the
// servers shared with each of them.
func (a *Account) Users(ctx context.Context) ([]*User, error) {
	root, err := a.query(ctx, http.MethodGet, "/api/users/", nil)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: user listing returned an empty body", plex.ErrSchemaMismatch)
	}

	var users []*User
	for _, el := range root.FindAll("User") {
		u, err := parseUser(el)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	a.logger.Debug().Int("count", len(users)).Msg("fetched plex.tv users")
	return users, nil
}

// User finds one shared user by title, username, email or account ID.
func (a *Account) User(ctx context.Context, name string) (*User, error) {
	users, err := a.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Title, name) ||
			strings.EqualFold(u.Username, name) ||
			strings.EqualFold(u.Email, name) ||
			strconv.Itoa(u.ID) == name {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: user %q", plex.ErrNotFound, name)
}

func parseUser(el *plex.Element) (*User, error) {
	d := plex.DecodeAttrs(el)
	u := &User{
		ID:                d.Int("id"),
		Title:             d.String("title"),
		Username:          d.String("username"),
		Email:             d.String("email"),
		Thumb:             d.String("thumb"),
		Home:              d.Bool("home"),
		Protected:         d.Bool("protected"),
		Restricted:        d.Bool("restricted"),
		AllowSync:         d.Bool("allowSync"),
		AllowCameraUpload: d.Bool("allowCameraUpload"),
		AllowChannels:     d.Bool("allowChannels"),
		FilterAll:         d.String("filterAll"),
		FilterMovies:      d.String("filterMovies"),
		FilterMusic:       d.String("filterMusic"),
		FilterPhotos:      d.String("filterPhotos"),
		FilterTelevision:  d.String("filterTelevision"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	for _, ch := range el.FindAll("Server") {
		sd := plex.DecodeAttrs(ch)
		share := ServerShare{
			ID:                sd.Int("id"),
			AccountID:         sd.Int("accountID"),
			ServerID:          sd.Int("serverId"),
			MachineIdentifier: sd.String("machineIdentifier"),
			Name:              sd.String("name"),
			LastSeenAt:        sd.UnixTime("lastSeenAt"),
			NumLibraries:      sd.Int("numLibraries"),
			AllLibraries:      sd.Bool("allLibraries"),
			Owned:             sd.Bool("owned"),
			Pending:           sd.Bool("pending"),
		}
		if err := sd.Err(); err != nil {
			return nil, err
		}
		if share.AccountID == 0 {
			share.AccountID = u.ID
		}
		u.Shares = append(u.Shares, share)
	}
	return u, nil
}

// Share returns the user's share of the named server.
func (u *User) Share(name string) (*ServerShare, error) {
	for i := range u.Shares {
		if strings.EqualFold(u.Shares[i].Name, name) {
			return &u.Shares[i], nil
		}
	}
	return nil, fmt.Errorf("%w: user %q has no share of server %q", plex.ErrNotFound, u.Title, name)
}
