// Package camera presents the relay's live streams alongside the camera
// devices gateways have registered.
package camera

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/meshgate-core/internal/apperr"
	"github.com/nerrad567/meshgate-core/internal/device"
	"github.com/nerrad567/meshgate-core/internal/relay"
)

// unknownSource is reported when the relay does not say what feeds a path.
const unknownSource = "unknown"

// PathLister returns the relay's live paths. *relay.StatusClient implements it.
type PathLister interface {
	ListPaths(ctx context.Context) ([]relay.Path, error)
}

// DeviceLister returns registered devices of one type. *device.Registry
// implements it.
type DeviceLister interface {
	ListByType(ctx context.Context, deviceType string) ([]device.View, error)
}

// View is one relay path prepared for display.
type View struct {
	// ID is the path name with "/" replaced by "-", safe for element ids
	// and URL segments.
	ID   string `json:"id"`
	Name string `json:"name"`
	// Path is the relay path, unchanged, for player and control lookups.
	Path       string `json:"path"`
	Ready      bool   `json:"ready"`
	SourceType string `json:"sourceType"`
}

// DeviceView is a registered camera merged with the live state of the
// relay path it publishes to.
type DeviceView struct {
	device.View
	Path       string `json:"path"`
	Streaming  bool   `json:"streaming"`
	Ready      bool   `json:"ready"`
	SourceType string `json:"sourceType"`
}

// Projector merges relay path state with registered devices.
type Projector struct {
	paths   PathLister
	devices DeviceLister
}

// NewProjector creates a Projector.
func NewProjector(paths PathLister, devices DeviceLister) *Projector {
	return &Projector{paths: paths, devices: devices}
}

// List returns every relay path as a View, in the relay's order. If the
// relay cannot be read the whole call fails with an UpstreamUnavailable
// error and nothing is returned.
func (p *Projector) List(ctx context.Context) ([]View, error) {
	paths, err := p.listPaths(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(paths))
	for _, path := range paths {
		views = append(views, Project(path))
	}
	return views, nil
}

// ListDeviceViews returns every registered camera with the readiness of
// the relay path named after it. Cameras with no live path are included
// with Streaming false.
func (p *Projector) ListDeviceViews(ctx context.Context) ([]DeviceView, error) {
	paths, err := p.listPaths(ctx)
	if err != nil {
		return nil, err
	}
	cameras, err := p.devices.ListByType(ctx, device.TypeCamera)
	if err != nil {
		return nil, fmt.Errorf("listing camera devices: %w", err)
	}

	byName := make(map[string]relay.Path, len(paths))
	for _, path := range paths {
		byName[path.Name] = path
	}

	views := make([]DeviceView, 0, len(cameras))
	for _, cam := range cameras {
		dv := DeviceView{View: cam, Path: cam.Name, SourceType: unknownSource}
		if path, ok := byName[cam.Name]; ok {
			dv.Streaming = true
			dv.Ready = path.Ready
			dv.SourceType = sourceType(path)
		}
		views = append(views, dv)
	}
	return views, nil
}

// Project maps a single relay path to its display form.
func Project(path relay.Path) View {
	return View{
		ID:         DisplayID(path.Name),
		Name:       path.Name,
		Path:       path.Name,
		Ready:      path.Ready,
		SourceType: sourceType(path),
	}
}

// DisplayID replaces every path separator in name with "-".
func DisplayID(name string) string {
	return strings.ReplaceAll(name, "/", "-")
}

func (p *Projector) listPaths(ctx context.Context) ([]relay.Path, error) {
	paths, err := p.paths.ListPaths(ctx)
	if err == nil {
		return paths, nil
	}
	if apperr.KindOf(err) == apperr.KindUpstreamUnavailable {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", relay.ErrUpstreamUnavailable, err)
}

func sourceType(path relay.Path) string {
	if path.Source != nil && path.Source.Type != "" {
		return path.Source.Type
	}
	if path.SourceType != "" {
		return path.SourceType
	}
	return unknownSource
}
