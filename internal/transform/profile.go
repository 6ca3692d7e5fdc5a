// Package transform holds the compiled-in transformation profiles and builds
// derived delivery URLs from them.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Component is a single provider parameter rendered as key_value.
type Component struct {
	Key   string
	Value string
}

func (c Component) String() string {
	return c.Key + "_" + c.Value
}

// Step groups components the provider applies together. Steps are applied
// left to right, so their order is significant.
type Step struct {
	Components []Component
}

// NewStep keeps components in the order given.
func NewStep(components ...Component) Step {
	return Step{Components: components}
}

func (s Step) String() string {
	parts := make([]string, len(s.Components))
	for i, c := range s.Components {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Profile is a named, versioned ordered list of steps.
type Profile struct {
	Name    string
	Version string
	Steps   []Step
}

// ID identifies the profile in logs and config errors.
func (p Profile) ID() string {
	return p.Name + "@" + p.Version
}

// Transformation renders the profile as the provider's path segment.
func (p Profile) Transformation() string {
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// Validate rejects profiles the provider could not interpret.
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("profile %s has no steps", p.ID())
	}
	for i, s := range p.Steps {
		if len(s.Components) == 0 {
			return fmt.Errorf("profile %s: step %d is empty", p.ID(), i)
		}
		for _, c := range s.Components {
			if c.Key == "" || c.Value == "" {
				return fmt.Errorf("profile %s: step %d has an incomplete component %q", p.ID(), i, c.String())
			}
			if strings.ContainsAny(c.Value, "/, ") {
				return fmt.Errorf("profile %s: step %d component %q contains a separator", p.ID(), i, c.String())
			}
		}
	}
	return nil
}

// Crop sets the crop mode.
func Crop(mode string) Component { return Component{Key: "c", Value: mode} }

// Gravity sets the focal target for cropping.
func Gravity(target string) Component { return Component{Key: "g", Value: target} }

// Width sets the target width in pixels.
func Width(px int) Component { return Component{Key: "w", Value: strconv.Itoa(px)} }

// Height sets the target height in pixels.
func Height(px int) Component { return Component{Key: "h", Value: strconv.Itoa(px)} }

// Zoom sets the zoom factor around the gravity target.
func Zoom(factor float64) Component {
	return Component{Key: "z", Value: strconv.FormatFloat(factor, 'f', -1, 64)}
}

// Effect applies a named provider effect.
func Effect(name string) Component { return Component{Key: "e", Value: name} }

// Background fills transparent areas.
func Background(color string) Component { return Component{Key: "b", Value: color} }

// Quality sets the output quality target.
func Quality(q string) Component { return Component{Key: "q", Value: q} }

// Format sets the output encoding.
func Format(f string) Component { return Component{Key: "f", Value: f} }

const (
	// DefaultProfile is active unless configuration selects another one.
	DefaultProfile = "passport-v1"
	// CompactProfile trades resolution for size.
	CompactProfile = "passport-compact-v1"
)

var registry = map[string]Profile{
	DefaultProfile: {
		Name:    DefaultProfile,
		Version: "1",
		Steps: []Step{
			NewStep(Crop("auto"), Gravity("face"), Width(350), Height(450), Zoom(0.75)),
			NewStep(Effect("background_removal:fineedges_y")),
			NewStep(Background("white")),
			NewStep(Effect("auto_brightness:80")),
			NewStep(Effect("auto_contrast:80")),
			NewStep(Effect("auto_color:80")),
			NewStep(Effect("upscale")),
			NewStep(Quality("auto:best"), Format("jpg")),
		},
	},
	CompactProfile: {
		Name:    CompactProfile,
		Version: "1",
		Steps: []Step{
			NewStep(Crop("auto"), Gravity("face"), Width(300), Height(400), Zoom(0.8)),
			NewStep(Effect("background_removal:fineedges_y")),
			NewStep(Background("white")),
			NewStep(Effect("auto_brightness:60")),
			NewStep(Effect("auto_contrast:60")),
			NewStep(Quality("auto:good"), Format("png")),
		},
	},
}

// Lookup returns a copy of the named profile.
func Lookup(name string) (Profile, error) {
	p, ok := registry[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown transformation profile %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	steps := make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = NewStep(append([]Component(nil), s.Components...)...)
	}
	p.Steps = steps
	return p, nil
}

// Names lists the registered profiles in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
