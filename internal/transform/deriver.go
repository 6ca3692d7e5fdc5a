package transform

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/example/passport-photo/internal/imageprocessor"
)

// Deriver builds on-demand transformation URLs for one active profile.
type Deriver struct {
	prefix  string
	profile Profile
}

// NewDeriver validates its inputs once so Derive can only fail on a missing object id.
func NewDeriver(baseURL, cloudName string, profile Profile) (*Deriver, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse delivery base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("delivery base url %q must be absolute", baseURL)
	}
	if cloudName == "" {
		return nil, errors.New("cloud name is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Deriver{
		prefix:  fmt.Sprintf("%s/%s/image/upload/", base.String(), cloudName),
		profile: profile,
	}, nil
}

// Derive returns the URL that renders objectID through the active profile.
// It performs no I/O.
func (d *Deriver) Derive(objectID string) (string, error) {
	if strings.TrimSpace(objectID) == "" {
		return "", fmt.Errorf("%w: object id is required", imageprocessor.ErrInvalidRequest)
	}
	return d.prefix + d.profile.Transformation() + "/" + objectID, nil
}

// Owns reports whether rawURL was built under this deriver's delivery prefix.
func (d *Deriver) Owns(rawURL string) bool {
	return strings.HasPrefix(rawURL, d.prefix) && len(rawURL) > len(d.prefix)
}

// Profile returns the active profile.
func (d *Deriver) Profile() Profile {
	return d.profile
}
