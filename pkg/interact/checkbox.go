package interact

import (
	"context"
	"math"
	"strings"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/gesture"
	"github.com/devicelab-dev/checkin-runner/pkg/locator"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

const (
	minLabelInset   = 12.0
	labelInsetRatio = 0.06
	rescanFactor    = 2.0
)

// Checkbox toggles checkbox-role controls and reads the state back.
type Checkbox struct {
	locator  *locator.Locator
	gestures *gesture.Executor
	cfg      Config
}

// NewCheckbox creates a checkbox verifier.
func NewCheckbox(l *locator.Locator, g *gesture.Executor, cfg Config) *Checkbox {
	return &Checkbox{locator: l, gestures: g, cfg: cfg.withQueries()}
}

type candidate struct {
	ID      string  `json:"id"`
	CenterY float64 `json:"centerY"`
	Delta   float64 `json:"delta"`
	Checked bool    `json:"checked"`
}

// Check ensures the control behind elementID ends up checked. An element
// that is itself a checkbox is clicked directly; anything else is treated
// as a label and handled by CheckNearLabel.
func (c *Checkbox) Check(ctx context.Context, elementID string) (Outcome, error) {
	s := c.locator.Session()
	class, err := s.ElementAttribute(elementID, "className")
	if err == nil && strings.Contains(strings.ToLower(class), "check") {
		outcome, err := c.checkDirect(ctx, elementID)
		if err != nil || outcome == OutcomeConfirmed {
			return outcome, err
		}
		logger.Debug("direct click on %s did not check it, trying label geometry", elementID)
	}
	return c.CheckNearLabel(ctx, elementID)
}

func (c *Checkbox) checkDirect(ctx context.Context, id string) (Outcome, error) {
	s := c.locator.Session()
	if checked, ok := readChecked(s, id); ok && checked {
		return OutcomeConfirmed, nil
	}
	if err := s.ClickElement(id); err != nil {
		logger.Debug("click on checkbox %s failed: %v", id, err)
		return OutcomeRetryable, nil
	}
	if err := c.gestures.Pause(ctx, c.cfg.ConfirmPause); err != nil {
		return OutcomeUnconfirmed, err
	}
	if checked, ok := readChecked(s, id); ok && checked {
		return OutcomeConfirmed, nil
	}
	return OutcomeRetryable, nil
}

// CheckNearLabel checks the checkbox visually associated with a label:
// tap just inside the label's left edge, confirm on the checkbox nearest
// by vertical center, tap that checkbox, and finally tap the label center
// and re-scan near it. A checkbox already checked is left alone.
func (c *Checkbox) CheckNearLabel(ctx context.Context, labelID string) (Outcome, error) {
	s := c.locator.Session()
	label, err := s.ElementRect(labelID)
	if err != nil {
		return OutcomeUnconfirmed, core.ErrElementNotFound.
			WithMessagef("label %s unreadable", labelID).WithCause(err)
	}
	labelCY := float64(label.Y) + float64(label.Height)/2
	tolerance := rescanFactor * float64(label.Height)

	// Only a box close to the label counts as already checked.
	before, err := c.scan(labelCY)
	if err != nil {
		return OutcomeUnconfirmed, err
	}
	if near := nearest(before, tolerance); near != nil && near.Checked {
		logger.Debug("checkbox %s near label %s already checked", near.ID, labelID)
		return OutcomeConfirmed, nil
	}

	// Tap where a checkbox sits in a left-to-right row, then read back.
	inset := math.Max(minLabelInset, labelInsetRatio*float64(label.Width))
	if err := c.gestures.Tap(ctx, float64(label.X)+inset, labelCY); err != nil {
		return OutcomeUnconfirmed, err
	}
	if err := c.gestures.Pause(ctx, c.cfg.ConfirmPause); err != nil {
		return OutcomeUnconfirmed, err
	}

	found, err := c.scan(labelCY)
	if err != nil {
		return OutcomeUnconfirmed, err
	}
	near := nearest(found, math.Inf(1))
	if near != nil && near.Checked {
		return OutcomeConfirmed, nil
	}

	// Tap the checkbox itself.
	if near != nil {
		outcome, err := c.tapAndConfirm(ctx, near.ID)
		if err != nil || outcome == OutcomeConfirmed {
			return outcome, err
		}
	}

	// Tap the label center and accept any checked box close to it.
	cx, _ := label.Center()
	if err := c.gestures.Tap(ctx, float64(cx), labelCY); err != nil {
		return OutcomeUnconfirmed, err
	}
	if err := c.gestures.Pause(ctx, c.cfg.RescanPause); err != nil {
		return OutcomeUnconfirmed, err
	}
	rescanned, err := c.scan(labelCY)
	if err != nil {
		return OutcomeUnconfirmed, err
	}
	for _, cand := range rescanned {
		if cand.Delta <= tolerance && cand.Checked {
			logger.Debug("checkbox %s confirmed after label-center tap", cand.ID)
			return OutcomeConfirmed, nil
		}
	}

	return OutcomeUnconfirmed, core.ErrInteractionUnconfirmed.
		WithMessagef("could not confirm checkbox toggle near label %s (%d candidates)", labelID, len(rescanned)).
		WithDetails(map[string]interface{}{
			"label":      label,
			"tolerance":  tolerance,
			"candidates": rescanned,
		})
}

func (c *Checkbox) tapAndConfirm(ctx context.Context, id string) (Outcome, error) {
	s := c.locator.Session()
	rect, err := s.ElementRect(id)
	if err != nil {
		return OutcomeRetryable, nil
	}
	cx := float64(rect.X) + float64(rect.Width)/2
	cy := float64(rect.Y) + float64(rect.Height)/2
	if err := c.gestures.Tap(ctx, cx, cy); err != nil {
		return OutcomeUnconfirmed, err
	}
	if err := c.gestures.Pause(ctx, c.cfg.ConfirmPause); err != nil {
		return OutcomeUnconfirmed, err
	}
	if checked, ok := readChecked(s, id); ok && checked {
		return OutcomeConfirmed, nil
	}
	return OutcomeRetryable, nil
}

// scan enumerates checkbox-role elements under the fast-probe wait.
// Elements whose rect or checked state cannot be read are skipped.
func (c *Checkbox) scan(labelCY float64) ([]candidate, error) {
	s := c.locator.Session()
	var out []candidate
	err := c.locator.Timeouts().Probe(func() error {
		ids, err := s.FindElements(core.UsingXPath, c.cfg.CheckboxXPath)
		if err != nil {
			logger.Debug("checkbox query failed: %v", err)
			return nil
		}
		for _, id := range ids {
			rect, err := s.ElementRect(id)
			if err != nil {
				continue
			}
			checked, ok := readChecked(s, id)
			if !ok {
				continue
			}
			cy := float64(rect.Y) + float64(rect.Height)/2
			out = append(out, candidate{ID: id, CenterY: cy, Delta: math.Abs(cy - labelCY), Checked: checked})
		}
		return nil
	})
	return out, err
}

// nearest returns the candidate with the smallest vertical delta within
// maxDelta. Ties keep document order.
func nearest(cands []candidate, maxDelta float64) *candidate {
	var best *candidate
	for i := range cands {
		if cands[i].Delta > maxDelta {
			continue
		}
		if best == nil || cands[i].Delta < best.Delta {
			best = &cands[i]
		}
	}
	return best
}

func readChecked(s core.Session, id string) (checked, ok bool) {
	v, err := s.ElementAttribute(id, "checked")
	if err != nil {
		return false, false
	}
	return strings.EqualFold(v, "true"), true
}
