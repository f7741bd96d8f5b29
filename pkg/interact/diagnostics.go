package interact

import (
	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/locator"
)

// visibleLabels lists up to limit displayed elements that carry text or a
// content description, formatted as "text" or "text [desc]".
func visibleLabels(l *locator.Locator, limit int) []string {
	s := l.Session()
	var out []string
	_ = l.Timeouts().Probe(func() error {
		ids, err := s.FindElements(core.UsingXPath, "//*")
		if err != nil {
			return nil
		}
		for _, id := range ids {
			if len(out) >= limit {
				break
			}
			if shown, err := s.IsElementDisplayed(id); err != nil || !shown {
				continue
			}
			text, _ := s.ElementText(id)
			desc, _ := s.ElementAttribute(id, "content-desc")
			info := core.ElementInfo{ID: id, Text: text, ContentDesc: desc}
			switch {
			case text != "" && desc != "" && desc != text:
				out = append(out, text+" ["+desc+"]")
			case info.Label() != "":
				out = append(out, info.Label())
			}
		}
		return nil
	})
	return out
}
