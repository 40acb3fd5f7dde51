package models

import "fmt"

// DesktopTarget identifies a desktop OS/browser combination.
type DesktopTarget struct {
	OS             string `json:"os" yaml:"os"`
	OSVersion      string `json:"os_version" yaml:"os_version"`
	Browser        string `json:"browser" yaml:"browser"`
	BrowserVersion string `json:"browser_version" yaml:"browser_version"`
}

// MobileTarget identifies a (real or emulated) mobile device.
type MobileTarget struct {
	Device     string `json:"device" yaml:"device"`
	OSVersion  string `json:"os_version" yaml:"os_version"`
	Browser    string `json:"browser" yaml:"browser"`
	RealMobile bool   `json:"real_mobile" yaml:"real_mobile"`
}

// ConfigurationDescriptor identifies one remote execution environment.
// Exactly one of Desktop or Mobile is set. Descriptors are defined once per
// run and never mutated.
type ConfigurationDescriptor struct {
	// Label is the human-readable name used in logs and reports.
	Label string `json:"label" yaml:"label"`

	Desktop *DesktopTarget `json:"desktop,omitempty" yaml:"desktop,omitempty"`
	Mobile  *MobileTarget  `json:"mobile,omitempty" yaml:"mobile,omitempty"`
}

// IsMobile reports whether the descriptor targets a device.
func (d ConfigurationDescriptor) IsMobile() bool {
	return d.Mobile != nil
}

// Validate checks that the descriptor is labelled and carries exactly one variant.
func (d ConfigurationDescriptor) Validate() error {
	if d.Label == "" {
		return NewScrapeError(ErrCodeInvalidInput, "configuration label is required", nil)
	}
	switch {
	case d.Desktop == nil && d.Mobile == nil:
		return NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("configuration %q has neither desktop nor mobile target", d.Label), nil)
	case d.Desktop != nil && d.Mobile != nil:
		return NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("configuration %q has both desktop and mobile targets", d.Label), nil)
	}
	return nil
}

// DefaultTargets returns the built-in set of five configurations.
func DefaultTargets() []ConfigurationDescriptor {
	return []ConfigurationDescriptor{
		{
			Label:   "Chrome Windows 10",
			Desktop: &DesktopTarget{OS: "Windows", OSVersion: "10", Browser: "Chrome", BrowserVersion: "latest"},
		},
		{
			Label:   "Safari macOS Monterey",
			Desktop: &DesktopTarget{OS: "OS X", OSVersion: "Monterey", Browser: "Safari", BrowserVersion: "latest"},
		},
		{
			Label:   "Firefox Windows 11",
			Desktop: &DesktopTarget{OS: "Windows", OSVersion: "11", Browser: "Firefox", BrowserVersion: "latest"},
		},
		{
			Label:  "Safari iPhone 13",
			Mobile: &MobileTarget{Device: "iPhone 13", OSVersion: "15", Browser: "Safari", RealMobile: true},
		},
		{
			Label:  "Chrome Samsung Galaxy S21",
			Mobile: &MobileTarget{Device: "Samsung Galaxy S21", OSVersion: "11.0", Browser: "Chrome", RealMobile: true},
		},
	}
}
