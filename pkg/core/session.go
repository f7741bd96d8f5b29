package core

import (
	"time"
)

// Query dialects understood by the automation server ("using" values).
const (
	UsingAccessibilityID = "accessibility id"
	UsingID              = "id"
	UsingXPath           = "xpath"
	UsingClassName       = "class name"
	UsingUiAutomator     = "-android uiautomator"
	UsingIOSPredicate    = "-ios predicate string"
)

// Session is the device-automation boundary consumed by the locator and
// interaction engine. Implementations: Appium (HTTP), mock (in-memory).
// One command is in flight per session at any time.
type Session interface {
	// Element lookup. Returns zero or more opaque element ids.
	FindElements(using, value string) ([]string, error)

	// Element state
	ElementRect(elementID string) (Bounds, error)
	ElementAttribute(elementID, name string) (string, error)
	ElementText(elementID string) (string, error)
	IsElementDisplayed(elementID string) (bool, error)
	IsElementEnabled(elementID string) (bool, error)

	// Element interaction
	ClickElement(elementID string) error
	ClearElement(elementID string) error
	SetElementValue(elementID, text string) error

	// PerformActions executes a raw pointer action sequence.
	PerformActions(seq PointerSequence) error

	// Implicit wait applied by the server to element lookups
	ImplicitWait() (time.Duration, error)
	SetImplicitWait(timeout time.Duration) error

	// WindowSize returns the screen dimensions in pixels.
	WindowSize() (width, height int, err error)

	// App lifecycle (used by step definitions, not by the locator core)
	ActivateApp(appID string) error
	TerminateApp(appID string) error
	BackgroundApp(d time.Duration) error
	CurrentPackage() (string, error)

	// Screenshot captures the current screen as PNG
	Screenshot() ([]byte, error)
}

// SourceProvider is implemented by sessions that can dump the page source.
type SourceProvider interface {
	Source() (string, error)
}

// Pointer action types (W3C Actions).
const (
	ActionPointerMove = "pointerMove"
	ActionPointerDown = "pointerDown"
	ActionPointerUp   = "pointerUp"
	ActionPause       = "pause"
)

// PointerAction is a single step of a touch pointer sequence.
type PointerAction struct {
	Type     string `json:"type"`
	Duration int    `json:"duration,omitempty"` // ms, for pointerMove and pause
	X        int    `json:"x,omitempty"`
	Y        int    `json:"y,omitempty"`
}

// PointerSequence is a named sequence of actions for one touch pointer.
type PointerSequence struct {
	ID      string
	Actions []PointerAction
}

// ElementInfo represents information about a UI element
type ElementInfo struct {
	ID          string `json:"id,omitempty"`
	Text        string `json:"text,omitempty"`
	ContentDesc string `json:"contentDesc,omitempty"`
	Class       string `json:"class,omitempty"`
	Bounds      Bounds `json:"bounds"`
	Visible     bool   `json:"visible"`
	Enabled     bool   `json:"enabled"`
	Checked     bool   `json:"checked,omitempty"`
}

// Label returns the most descriptive human-readable name of the element.
func (e *ElementInfo) Label() string {
	if e.Text != "" {
		return e.Text
	}
	return e.ContentDesc
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// CenterY returns the vertical center of the bounds
func (b Bounds) CenterY() int {
	return b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// PlatformInfo contains device and platform details
type PlatformInfo struct {
	Platform     string `json:"platform"`               // ios, android
	DeviceName   string `json:"deviceName,omitempty"`   // e.g., "Android Emulator"
	ScreenWidth  int    `json:"screenWidth,omitempty"`  // Screen width in pixels
	ScreenHeight int    `json:"screenHeight,omitempty"` // Screen height in pixels
	AppID        string `json:"appId,omitempty"`        // Bundle ID / Package name
}
