package locator

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
)

// Resolution is the outcome of one strategy attempt. A miss carries the
// reason; it is never an error.
type Resolution struct {
	ElementID string
	Miss      string
}

// Found reports whether the attempt produced an element.
func (r Resolution) Found() bool {
	return r.ElementID != ""
}

// MissNotDisplayed is the miss reason for an element that exists but is not
// displayed yet.
const MissNotDisplayed = "not displayed"

func miss(format string, args ...interface{}) Resolution {
	return Resolution{Miss: fmt.Sprintf(format, args...)}
}

// Strategy is one way of resolving a logical element.
type Strategy interface {
	Name() string
	TryResolve(s core.Session) Resolution
}

// Selector is a Strategy backed by a single W3C element query.
type Selector struct {
	Label string
	Using string
	Value string
}

// Name returns the label, or the dialect and query.
func (sel Selector) Name() string {
	if sel.Label != "" {
		return sel.Label
	}
	return sel.Using + "=" + sel.Value
}

// TryResolve queries the session and accepts the first match if displayed.
func (sel Selector) TryResolve(s core.Session) Resolution {
	ids, err := s.FindElements(sel.Using, sel.Value)
	if err != nil {
		return miss("query failed: %v", err)
	}
	if len(ids) == 0 {
		return miss("no match")
	}
	displayed, err := s.IsElementDisplayed(ids[0])
	if err != nil {
		return miss("visibility check failed: %v", err)
	}
	if !displayed {
		return Resolution{Miss: MissNotDisplayed}
	}
	return Resolution{ElementID: ids[0]}
}

// AccessibilityID matches the content-desc (Android) or accessibility
// identifier (iOS). A leading "~" is stripped.
func AccessibilityID(id string) Selector {
	id = strings.TrimPrefix(id, "~")
	return Selector{Label: "~" + id, Using: core.UsingAccessibilityID, Value: id}
}

// Text matches elements whose text equals text.
func Text(text string) Selector {
	return uiSelector(fmt.Sprintf("text(%q)", text), "new UiSelector().text(\""+escapeUiAutomatorString(text)+"\")")
}

// TextContains matches elements whose text contains text.
func TextContains(text string) Selector {
	return uiSelector(fmt.Sprintf("textContains(%q)", text), "new UiSelector().textContains(\""+escapeUiAutomatorString(text)+"\")")
}

// DescriptionContains matches elements whose content-desc contains desc.
func DescriptionContains(desc string) Selector {
	return uiSelector(fmt.Sprintf("descriptionContains(%q)", desc), "new UiSelector().descriptionContains(\""+escapeUiAutomatorString(desc)+"\")")
}

// ClassText matches elements of class whose text equals text.
func ClassText(class, text string) Selector {
	q := fmt.Sprintf("new UiSelector().className(\"%s\").text(\"%s\")", escapeUiAutomatorString(class), escapeUiAutomatorString(text))
	return uiSelector(fmt.Sprintf("%s.text(%q)", shortClass(class), text), q)
}

// ClassTextContains matches elements of class whose text contains text.
func ClassTextContains(class, text string) Selector {
	q := fmt.Sprintf("new UiSelector().className(\"%s\").textContains(\"%s\")", escapeUiAutomatorString(class), escapeUiAutomatorString(text))
	return uiSelector(fmt.Sprintf("%s.textContains(%q)", shortClass(class), text), q)
}

// ClickableTextContains matches clickable elements whose text contains text.
func ClickableTextContains(text string) Selector {
	q := "new UiSelector().clickable(true).textContains(\"" + escapeUiAutomatorString(text) + "\")"
	return uiSelector(fmt.Sprintf("clickable.textContains(%q)", text), q)
}

// AttributeXPath matches any element whose content-desc, text or
// resource-id equals value.
func AttributeXPath(value string) Selector {
	lit := xpathLiteral(value)
	return XPath(fmt.Sprintf("//*[@content-desc=%s or @text=%s or @resource-id=%s]", lit, lit, lit))
}

// XPath matches an XPath expression against the page source.
func XPath(expr string) Selector {
	return Selector{Label: expr, Using: core.UsingXPath, Value: expr}
}

// UiAutomator runs a raw UiSelector expression (Android).
func UiAutomator(expr string) Selector {
	return uiSelector("android="+expr, expr)
}

// Predicate runs an NSPredicate query (iOS).
func Predicate(expr string) Selector {
	return Selector{Label: "ios=" + expr, Using: core.UsingIOSPredicate, Value: expr}
}

// ResourceID matches the element resource id.
func ResourceID(id string) Selector {
	return Selector{Label: "id=" + id, Using: core.UsingID, Value: id}
}

// ClassName matches the element class.
func ClassName(class string) Selector {
	return Selector{Label: "class=" + class, Using: core.UsingClassName, Value: class}
}

func uiSelector(label, expr string) Selector {
	return Selector{Label: label, Using: core.UsingUiAutomator, Value: expr}
}

// ParseSelector converts a selector string into a Selector, dispatching on
// its leading marker only:
//
//	~id          accessibility id
//	//... (/...  xpath
//	android=...  UiSelector expression
//	ios=...      iOS predicate
//	id=...       resource id
//
// Anything else is treated as exact text.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Selector{}, core.ErrMissingRequired.WithMessage("empty selector")
	case strings.HasPrefix(s, "~"):
		if len(s) == 1 {
			return Selector{}, core.ErrMissingRequired.WithMessage("empty accessibility id")
		}
		return AccessibilityID(s), nil
	case strings.HasPrefix(s, "//"), strings.HasPrefix(s, "(/"):
		return XPath(s), nil
	case strings.HasPrefix(s, "android="):
		return UiAutomator(strings.TrimPrefix(s, "android=")), nil
	case strings.HasPrefix(s, "ios="):
		return Predicate(strings.TrimPrefix(s, "ios=")), nil
	case strings.HasPrefix(s, "id="):
		return ResourceID(strings.TrimPrefix(s, "id=")), nil
	default:
		return Text(s), nil
	}
}

// escapeUiAutomatorString escapes a value for a quoted UiSelector argument.
func escapeUiAutomatorString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(parts, `, '"', `) + ")"
}

func shortClass(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}
