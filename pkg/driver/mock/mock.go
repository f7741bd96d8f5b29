// Package mock provides a scripted in-memory core.Session for testing the
// locator and interaction engine without a device.
//
// The screen is modelled as a vertically scrolling list of pages. Every
// element is rendered on exactly one page (or on all pages when Page is
// AnyPage); an upward swipe advances to the next page. Taps and clicks
// toggle checkable elements and run element hooks.
package mock

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
)

// AnyPage renders an element regardless of scroll position.
const AnyPage = -1

// Element is one node of the scripted UI.
type Element struct {
	ID          string
	Class       string
	Text        string
	ContentDesc string
	ResourceID  string
	Bounds      core.Bounds
	Page        int

	Checkable bool
	Checked   bool
	Disabled  bool
	Hidden    bool // Rendered but not displayed
	// HiddenReads reports the element as not displayed for this many
	// visibility reads before it appears.
	HiddenReads int
	Clickable bool

	// StaleAttributes makes rect and attribute reads fail as if the element
	// went stale between lookup and read.
	StaleAttributes bool

	// Toggles names a checkable element flipped when this element is tapped
	// or clicked (a label wired to its checkbox).
	Toggles string

	// OnClick runs after a tap or click on this element.
	OnClick func(d *Driver)

	// Value receives text typed with SetElementValue.
	Value string
}

// Config configures mock session behavior.
type Config struct {
	ScreenWidth  int
	ScreenHeight int
	Package      string
	Elements     []*Element

	// Pages is the number of scroll pages; swipes past the last page are
	// recorded but do not move. Defaults to the highest element page + 1.
	Pages int

	// ImplicitWait is the initial implicit wait.
	ImplicitWait time.Duration

	// RejectGestures makes PerformActions fail.
	RejectGestures bool
	// FailImplicitRead makes ImplicitWait() fail.
	FailImplicitRead bool
}

// Tap records a tap gesture.
type Tap struct {
	X, Y int
}

// Find records one element query.
type Find struct {
	Using        string
	Value        string
	ImplicitWait time.Duration
	Matches      int
}

// Driver is a mock implementation of core.Session.
type Driver struct {
	Config Config

	page       int
	implicit   time.Duration
	foreground bool

	// Recorded interactions
	Swipes       int
	Taps         []Tap
	Clicks       []string
	Finds        []Find
	ImplicitSets []time.Duration
	Backgrounded []time.Duration
	Terminations int
	Activations  int
	Screenshots  int
	Sources      int
}

// New creates a new mock session.
func New(cfg Config) *Driver {
	if cfg.ScreenWidth == 0 {
		cfg.ScreenWidth = 1080
	}
	if cfg.ScreenHeight == 0 {
		cfg.ScreenHeight = 2400
	}
	if cfg.Package == "" {
		cfg.Package = "com.cucumberappiumdemo"
	}
	if cfg.Pages == 0 {
		for _, e := range cfg.Elements {
			if e.Page+1 > cfg.Pages {
				cfg.Pages = e.Page + 1
			}
		}
		if cfg.Pages == 0 {
			cfg.Pages = 1
		}
	}
	return &Driver{Config: cfg, implicit: cfg.ImplicitWait, foreground: true}
}

// Add renders a new element, e.g. a toast appearing after a click.
func (d *Driver) Add(e *Element) {
	d.Config.Elements = append(d.Config.Elements, e)
}

// Remove drops an element by id.
func (d *Driver) Remove(id string) {
	kept := d.Config.Elements[:0]
	for _, e := range d.Config.Elements {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	d.Config.Elements = kept
}

// Element returns the element with the given id, rendered or not.
func (d *Driver) Element(id string) *Element {
	for _, e := range d.Config.Elements {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Page returns the current scroll page.
func (d *Driver) Page() int {
	return d.page
}

// CurrentImplicitWait returns the implicit wait without recording a read.
func (d *Driver) CurrentImplicitWait() time.Duration {
	return d.implicit
}

// FindsFor returns the recorded queries with the given dialect.
func (d *Driver) FindsFor(using string) []Find {
	var out []Find
	for _, f := range d.Finds {
		if f.Using == using {
			out = append(out, f)
		}
	}
	return out
}

func (d *Driver) rendered(e *Element) bool {
	return e.Page == AnyPage || e.Page == d.page
}

func (d *Driver) live(id string) (*Element, error) {
	e := d.Element(id)
	if e == nil || !d.rendered(e) {
		return nil, fmt.Errorf("stale element reference: %s", id)
	}
	return e, nil
}

// FindElements implements core.Session.
func (d *Driver) FindElements(using, value string) ([]string, error) {
	match, err := compile(using, value)
	if err != nil {
		d.Finds = append(d.Finds, Find{Using: using, Value: value, ImplicitWait: d.implicit})
		return nil, err
	}

	var ids []string
	for _, e := range d.Config.Elements {
		if d.rendered(e) && match.test(e) {
			ids = append(ids, e.ID)
		}
	}
	if match.index > 0 {
		if match.index <= len(ids) {
			ids = []string{ids[match.index-1]}
		} else {
			ids = nil
		}
	}
	d.Finds = append(d.Finds, Find{Using: using, Value: value, ImplicitWait: d.implicit, Matches: len(ids)})
	return ids, nil
}

// ElementRect implements core.Session.
func (d *Driver) ElementRect(id string) (core.Bounds, error) {
	e, err := d.live(id)
	if err != nil {
		return core.Bounds{}, err
	}
	if e.StaleAttributes {
		return core.Bounds{}, fmt.Errorf("stale element reference: %s", id)
	}
	return e.Bounds, nil
}

// ElementAttribute implements core.Session.
func (d *Driver) ElementAttribute(id, name string) (string, error) {
	e, err := d.live(id)
	if err != nil {
		return "", err
	}
	if e.StaleAttributes {
		return "", fmt.Errorf("stale element reference: %s", id)
	}
	switch name {
	case "checked":
		return strconv.FormatBool(e.Checked), nil
	case "checkable":
		return strconv.FormatBool(e.Checkable), nil
	case "enabled":
		return strconv.FormatBool(!e.Disabled), nil
	case "displayed":
		return strconv.FormatBool(!e.Hidden), nil
	case "clickable":
		return strconv.FormatBool(e.Clickable), nil
	case "className", "class":
		return e.Class, nil
	case "content-desc", "contentDescription", "name":
		return e.ContentDesc, nil
	case "resource-id", "resourceId":
		return e.ResourceID, nil
	case "text":
		return e.Text, nil
	default:
		return "", nil
	}
}

// ElementText implements core.Session.
func (d *Driver) ElementText(id string) (string, error) {
	e, err := d.live(id)
	if err != nil {
		return "", err
	}
	if e.Value != "" {
		return e.Value, nil
	}
	return e.Text, nil
}

// IsElementDisplayed implements core.Session.
func (d *Driver) IsElementDisplayed(id string) (bool, error) {
	e, err := d.live(id)
	if err != nil {
		return false, err
	}
	if e.HiddenReads > 0 {
		e.HiddenReads--
		return false, nil
	}
	return !e.Hidden, nil
}

// IsElementEnabled implements core.Session.
func (d *Driver) IsElementEnabled(id string) (bool, error) {
	e, err := d.live(id)
	if err != nil {
		return false, err
	}
	return !e.Disabled, nil
}

// ClickElement implements core.Session.
func (d *Driver) ClickElement(id string) error {
	e, err := d.live(id)
	if err != nil {
		return err
	}
	d.Clicks = append(d.Clicks, id)
	d.activate(e)
	return nil
}

// ClearElement implements core.Session.
func (d *Driver) ClearElement(id string) error {
	e, err := d.live(id)
	if err != nil {
		return err
	}
	e.Value = ""
	return nil
}

// SetElementValue implements core.Session.
func (d *Driver) SetElementValue(id, text string) error {
	e, err := d.live(id)
	if err != nil {
		return err
	}
	e.Value += text
	return nil
}

func (d *Driver) activate(e *Element) {
	if e.Checkable {
		e.Checked = !e.Checked
	}
	if e.Toggles != "" {
		if target := d.Element(e.Toggles); target != nil && target.Checkable {
			target.Checked = !target.Checked
		}
	}
	if e.OnClick != nil {
		e.OnClick(d)
	}
}

// PerformActions implements core.Session. A sequence with a pointerMove
// between down and up is a swipe; otherwise it is a tap at the down point.
func (d *Driver) PerformActions(seq core.PointerSequence) error {
	if d.Config.RejectGestures {
		return fmt.Errorf("invalid argument: pointer sequence rejected")
	}

	var x, y, startY int
	down, moved := false, false
	for _, a := range seq.Actions {
		switch a.Type {
		case core.ActionPointerMove:
			if down {
				moved = true
			}
			x, y = a.X, a.Y
		case core.ActionPointerDown:
			down = true
			startY = y
		case core.ActionPointerUp:
			if !down {
				return fmt.Errorf("invalid argument: pointerUp without pointerDown")
			}
		}
		if x < 0 || y < 0 {
			return fmt.Errorf("invalid argument: negative coordinates (%d, %d)", x, y)
		}
	}

	if moved {
		d.Swipes++
		if y < startY && d.page < d.Config.Pages-1 {
			d.page++
		} else if y > startY && d.page > 0 {
			d.page--
		}
		return nil
	}

	d.Taps = append(d.Taps, Tap{X: x, Y: y})
	if e := d.hit(x, y); e != nil {
		d.activate(e)
	}
	return nil
}

// hit returns the element under the point, preferring checkable elements,
// then the smallest element.
func (d *Driver) hit(x, y int) *Element {
	var best *Element
	for _, e := range d.Config.Elements {
		if !d.rendered(e) || e.Hidden || !e.Bounds.Contains(x, y) {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		if e.Checkable != best.Checkable {
			if e.Checkable {
				best = e
			}
			continue
		}
		if e.Bounds.Width*e.Bounds.Height < best.Bounds.Width*best.Bounds.Height {
			best = e
		}
	}
	return best
}

// ImplicitWait implements core.Session.
func (d *Driver) ImplicitWait() (time.Duration, error) {
	if d.Config.FailImplicitRead {
		return 0, fmt.Errorf("unknown command: GET timeouts")
	}
	return d.implicit, nil
}

// SetImplicitWait implements core.Session.
func (d *Driver) SetImplicitWait(timeout time.Duration) error {
	d.implicit = timeout
	d.ImplicitSets = append(d.ImplicitSets, timeout)
	return nil
}

// WindowSize implements core.Session.
func (d *Driver) WindowSize() (int, int, error) {
	return d.Config.ScreenWidth, d.Config.ScreenHeight, nil
}

// ActivateApp implements core.Session.
func (d *Driver) ActivateApp(appID string) error {
	d.Activations++
	if appID == d.Config.Package {
		d.foreground = true
	}
	return nil
}

// TerminateApp implements core.Session.
func (d *Driver) TerminateApp(appID string) error {
	d.Terminations++
	if appID == d.Config.Package {
		d.foreground = false
	}
	return nil
}

// BackgroundApp implements core.Session.
func (d *Driver) BackgroundApp(dur time.Duration) error {
	d.Backgrounded = append(d.Backgrounded, dur)
	return nil
}

// CurrentPackage implements core.Session.
func (d *Driver) CurrentPackage() (string, error) {
	if !d.foreground {
		return "com.android.launcher3", nil
	}
	return d.Config.Package, nil
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	d.Screenshots++
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// Source renders the elements on the current page as UiAutomator2-style
// page source.
func (d *Driver) Source() (string, error) {
	d.Sources++
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<hierarchy index="0" rotation="0">` + "\n")
	for _, e := range d.Config.Elements {
		if !d.rendered(e) {
			continue
		}
		class := e.Class
		if class == "" {
			class = "android.view.View"
		}
		b := e.Bounds
		fmt.Fprintf(&buf, "  <%s", class)
		writeAttr(&buf, "class", class)
		writeAttr(&buf, "text", e.Text)
		writeAttr(&buf, "resource-id", e.ResourceID)
		writeAttr(&buf, "content-desc", e.ContentDesc)
		writeAttr(&buf, "checkable", strconv.FormatBool(e.Checkable))
		writeAttr(&buf, "checked", strconv.FormatBool(e.Checked))
		writeAttr(&buf, "clickable", strconv.FormatBool(e.Clickable))
		writeAttr(&buf, "enabled", strconv.FormatBool(!e.Disabled))
		writeAttr(&buf, "displayed", strconv.FormatBool(!e.Hidden))
		writeAttr(&buf, "bounds", fmt.Sprintf("[%d,%d][%d,%d]", b.X, b.Y, b.X+b.Width, b.Y+b.Height))
		buf.WriteString("/>\n")
	}
	buf.WriteString("</hierarchy>\n")
	return buf.String(), nil
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	buf.WriteString(" " + name + `="`)
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteString(`"`)
}

var _ core.Session = (*Driver)(nil)

// Query matching

type matcher struct {
	test  func(e *Element) bool
	index int // 1-based positional filter, 0 = all
}

var (
	uiCallRe     = regexp.MustCompile(`\.(\w+)\(("(?:[^"\\]|\\.)*"|true|false)\)`)
	xpathRe      = regexp.MustCompile(`^//([\w.*]+)(?:\[(.+)\])?$`)
	xpathAttrRe  = regexp.MustCompile(`@([\w-]+)\s*=\s*["']([^"']*)["']`)
	xpathIndexRe = regexp.MustCompile(`^\d+$`)
)

func compile(using, value string) (*matcher, error) {
	switch using {
	case core.UsingAccessibilityID:
		return &matcher{test: func(e *Element) bool { return e.ContentDesc == value }}, nil
	case core.UsingID:
		return &matcher{test: func(e *Element) bool {
			return e.ResourceID == value || strings.HasSuffix(e.ResourceID, ":id/"+value)
		}}, nil
	case core.UsingClassName:
		return &matcher{test: func(e *Element) bool { return e.Class == value }}, nil
	case core.UsingXPath:
		return compileXPath(value)
	case core.UsingUiAutomator:
		return compileUiSelector(value)
	default:
		return nil, fmt.Errorf("invalid selector: unsupported locator strategy %q", using)
	}
}

func compileXPath(value string) (*matcher, error) {
	m := xpathRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return nil, fmt.Errorf("invalid selector: unsupported xpath %q", value)
	}
	class, predicate := m[1], m[2]
	classOK := func(e *Element) bool { return class == "*" || e.Class == class }

	if predicate == "" {
		return &matcher{test: classOK}, nil
	}
	if xpathIndexRe.MatchString(predicate) {
		n, _ := strconv.Atoi(predicate)
		return &matcher{test: classOK, index: n}, nil
	}

	attrs := xpathAttrRe.FindAllStringSubmatch(predicate, -1)
	if len(attrs) == 0 {
		return nil, fmt.Errorf("invalid selector: unsupported xpath predicate %q", predicate)
	}
	return &matcher{test: func(e *Element) bool {
		if !classOK(e) {
			return false
		}
		for _, a := range attrs {
			if attrValue(e, a[1]) == a[2] {
				return true
			}
		}
		return false
	}}, nil
}

func attrValue(e *Element, name string) string {
	switch name {
	case "text":
		return e.Text
	case "content-desc":
		return e.ContentDesc
	case "resource-id":
		return e.ResourceID
	case "class":
		return e.Class
	}
	return ""
}

func compileUiSelector(value string) (*matcher, error) {
	if !strings.HasPrefix(value, "new UiSelector()") {
		return nil, fmt.Errorf("invalid selector: %q", value)
	}
	calls := uiCallRe.FindAllStringSubmatch(value, -1)
	if len(calls) == 0 {
		return nil, fmt.Errorf("invalid selector: %q", value)
	}

	var preds []func(e *Element) bool
	for _, c := range calls {
		method, raw := c[1], c[2]
		arg := raw
		if strings.HasPrefix(raw, `"`) {
			unq, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid selector: %q", value)
			}
			arg = unq
		}
		switch method {
		case "text":
			preds = append(preds, func(e *Element) bool { return e.Text == arg })
		case "textContains":
			preds = append(preds, func(e *Element) bool { return strings.Contains(e.Text, arg) })
		case "description":
			preds = append(preds, func(e *Element) bool { return e.ContentDesc == arg })
		case "descriptionContains":
			preds = append(preds, func(e *Element) bool { return strings.Contains(e.ContentDesc, arg) })
		case "className":
			preds = append(preds, func(e *Element) bool { return e.Class == arg })
		case "resourceId":
			preds = append(preds, func(e *Element) bool { return e.ResourceID == arg })
		case "resourceIdMatches":
			re, err := regexp.Compile(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid selector: %v", err)
			}
			preds = append(preds, func(e *Element) bool { return re.MatchString(e.ResourceID) })
		case "clickable":
			want := arg == "true"
			preds = append(preds, func(e *Element) bool { return e.Clickable == want })
		case "checkable":
			want := arg == "true"
			preds = append(preds, func(e *Element) bool { return e.Checkable == want })
		default:
			return nil, fmt.Errorf("invalid selector: unsupported UiSelector method %q", method)
		}
	}
	return &matcher{test: func(e *Element) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}}, nil
}
