package appium

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
)

// Node is one element of a UiAutomator2 page source.
type Node struct {
	core.ElementInfo
	ResourceID string
	Hint       string
	Checkable  bool
	Clickable  bool
	Depth      int
}

// Selector suggests the most specific selector string for the node, in the
// form accepted by locator.ParseSelector. Empty when nothing identifies it.
func (n Node) Selector() string {
	switch {
	case n.ContentDesc != "":
		return "~" + n.ContentDesc
	case n.ResourceID != "":
		return "id=" + n.ResourceID
	case n.Text != "":
		return n.Text
	default:
		return ""
	}
}

// ParseHierarchy parses Android page source XML into a flat, document-ordered
// list of nodes with their nesting depth.
func ParseHierarchy(xmlData string) ([]Node, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))

	var nodes []Node
	foundHierarchy := false
	depth := -1
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(nodes) == 0 {
				return nil, fmt.Errorf("parse page source: %w", err)
			}
			break
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "hierarchy" {
				foundHierarchy = true
				continue
			}
			depth++
			nodes = append(nodes, parseNode(t, depth))
		case xml.EndElement:
			if t.Name.Local != "hierarchy" {
				depth--
			}
		}
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}
	return nodes, nil
}

func parseNode(t xml.StartElement, depth int) Node {
	n := Node{Depth: depth}
	n.Class = t.Name.Local
	n.Visible = true
	for _, attr := range t.Attr {
		switch attr.Name.Local {
		case "text":
			n.Text = attr.Value
		case "resource-id":
			n.ResourceID = attr.Value
			n.ID = attr.Value
		case "content-desc":
			n.ContentDesc = attr.Value
		case "hint":
			n.Hint = attr.Value
		case "class":
			n.Class = attr.Value
		case "bounds":
			n.Bounds = parseBounds(attr.Value)
		case "enabled":
			n.Enabled = attr.Value == "true"
		case "checked":
			n.Checked = attr.Value == "true"
		case "checkable":
			n.Checkable = attr.Value == "true"
		case "clickable":
			n.Clickable = attr.Value == "true"
		case "displayed":
			n.Visible = attr.Value != "false"
		}
	}
	return n
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]".
func parseBounds(s string) core.Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}
