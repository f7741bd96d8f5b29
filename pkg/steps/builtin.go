package steps

import (
	"context"
	"strconv"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/interact"
	"github.com/devicelab-dev/checkin-runner/pkg/locator"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

const (
	classEditText = "android.widget.EditText"
	classTextView = "android.widget.TextView"
	classButton   = "android.widget.Button"
)

// Logical targets of the check-in flow.
var (
	welcomeTarget = locator.NewTarget("home screen",
		locator.AccessibilityID("welcome-text"),
		locator.XPath("//"+classTextView),
		locator.XPath("//"+classButton))

	checkInScreenTarget = locator.NewTarget("check-in screen",
		locator.Text("Check-in"),
		locator.XPath("//"+classEditText))

	pnrTarget = locator.NewTarget("PNR input",
		locator.TextContains("Enter your PNR"),
		locator.XPath("//"+classEditText+"[1]"))

	lastNameTarget = locator.NewTarget("last name input",
		locator.TextContains("Enter your Last Name"),
		locator.XPath("//"+classEditText+"[2]"))

	errorToastTarget = locator.NewTarget("error toast", locator.TextContains("Incorrect"))

	passengerDetailsTarget = locator.NewTarget("passenger details screen",
		locator.AccessibilityID("passengerDetailsScreen"))

	checkInTitleTarget = locator.NewTarget("check-in title", locator.Text("Check-in"))

	bluChipTarget = locator.NewTarget("BluChip checkbox",
		locator.AccessibilityID("bluchip-checkbox-box")).WithFallback("BluChip")

	declarationTarget = locator.NewTarget("dangerous goods declaration",
		locator.AccessibilityID("declaration-checkbox-box")).WithFallback("I have read and understood")

	checkInButtonTarget = locator.NewTarget("Check-in button",
		locator.AccessibilityID("check-in-btn"),
		locator.ClassTextContains(classButton, "Check-in")).WithFallback("Check-in")

	responseMessageTarget = locator.NewTarget("response message",
		locator.AccessibilityID(interact.ResponseMessageID))
)

// Default returns a registry with the built-in step definitions.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister("the app is launched", "App shows its first screen or is in the foreground", appLaunched)
	r.MustRegister("I am on the check-in screen", "Check-in title or an input field is visible", onCheckInScreen)
	r.MustRegister("I enter PNR {string}", "Types into the PNR field", enterPNR)
	r.MustRegister("I enter last name {string}", "Types into the last name field", enterLastName)
	r.MustRegister("I click the get started button", "Clicks Get Started once enabled", clickGetStarted)
	r.MustRegister("I should see an appropriate response", "Error toast, passenger details, or still on check-in", appropriateResponse)
	r.MustRegister("I check the BluChip checkbox", "Scrolls to the BluChip option and checks it", checkBluChip)
	r.MustRegister("I check the dangerous goods declaration checkbox", "Scrolls to the declaration and checks it", checkDeclaration)
	r.MustRegister("I tap the Check-in button", "Scrolls to Check-in and clicks it once enabled", tapCheckIn)
	r.MustRegister("I press the {string}", "Clicks the button with this label or accessibility id", pressButton)
	r.MustRegister("I should see the response message", "ResponseMessage element is displayed", seeResponseMessage)
	r.MustRegister("I should see the response message {string}", "Response text contains the value", seeResponseMessageText)
	r.MustRegister("I put the app in the background for {int} seconds", "Backgrounds the app and brings it back", backgroundApp)
	r.MustRegister("I restart the app", "Terminates and re-activates the app", restartApp)
	return r
}

func appLaunched(ctx context.Context, sc *Context, _ []string) error {
	m, err := sc.WaitFor(ctx, welcomeTarget, sc.opts.Profile.Normal)
	if err != nil {
		return err
	}
	if m.Found() {
		logger.Debug("app launched, %s visible via %s", welcomeTarget, m.Strategy)
		return nil
	}

	pkg, err := sc.Session.CurrentPackage()
	if err != nil {
		return core.ErrAppNotRunning.WithMessage("no screen element visible and current package unknown").WithCause(err)
	}
	if pkg != sc.opts.AppPackage {
		return core.ErrAppNotRunning.WithMessagef("foreground package is %q, want %q", pkg, sc.opts.AppPackage)
	}
	logger.Info("no screen element visible, but %s is in the foreground", pkg)
	return nil
}

func onCheckInScreen(ctx context.Context, sc *Context, _ []string) error {
	_, err := sc.Require(ctx, checkInScreenTarget, sc.opts.Profile.Normal)
	return err
}

func typeInto(ctx context.Context, sc *Context, t locator.Target, value string) error {
	id, err := sc.Require(ctx, t, sc.opts.Profile.Normal)
	if err != nil {
		return err
	}
	if err := sc.Session.ClearElement(id); err != nil {
		return core.ErrElementNotFound.WithMessagef("clear %s", t).WithCause(err)
	}
	if err := sc.Session.SetElementValue(id, value); err != nil {
		return core.ErrElementNotFound.WithMessagef("type into %s", t).WithCause(err)
	}
	logger.Debug("entered %d characters into %s", len(value), t)
	return nil
}

func enterPNR(ctx context.Context, sc *Context, args []string) error {
	return typeInto(ctx, sc, pnrTarget, args[0])
}

func enterLastName(ctx context.Context, sc *Context, args []string) error {
	return typeInto(ctx, sc, lastNameTarget, args[0])
}

func clickGetStarted(ctx context.Context, sc *Context, _ []string) error {
	return sc.Buttons.ClickLogicalButton(ctx, "Get Started", locator.XPath("//"+classButton))
}

// appropriateResponse accepts the error toast, a navigation to passenger
// details, or staying on the check-in screen. The toast is short-lived so
// it is checked first without a settle pause.
func appropriateResponse(ctx context.Context, sc *Context, _ []string) error {
	m, err := sc.WaitFor(ctx, errorToastTarget, sc.opts.ToastTimeout)
	if err != nil {
		return err
	}
	if m.Found() {
		logger.Info("error toast shown")
		return nil
	}

	if err := sc.Gestures.Pause(ctx, sc.opts.ResponseSettle); err != nil {
		return err
	}
	for _, t := range []locator.Target{passengerDetailsTarget, checkInTitleTarget} {
		m, err := sc.WaitFor(ctx, t, sc.opts.ScreenTimeout)
		if err != nil {
			return err
		}
		if m.Found() {
			logger.Info("response state: %s", t)
			return nil
		}
	}
	return core.ErrConditionNotMet.WithMessage("no error toast, passenger details screen or check-in screen after submit")
}

func checkBluChip(ctx context.Context, sc *Context, _ []string) error {
	m, err := sc.Search.FindByScrolling(ctx, bluChipTarget)
	if err != nil {
		return err
	}
	_, err = sc.Checkbox.CheckNearLabel(ctx, m.ElementID)
	return err
}

func checkDeclaration(ctx context.Context, sc *Context, _ []string) error {
	m, err := sc.Search.FindByScrolling(ctx, declarationTarget)
	if err != nil {
		return err
	}
	_, err = sc.Checkbox.Check(ctx, m.ElementID)
	return err
}

func tapCheckIn(ctx context.Context, sc *Context, _ []string) error {
	m, err := sc.Search.FindByScrolling(ctx, checkInButtonTarget)
	if err != nil {
		return err
	}
	timeout := sc.opts.Interaction.EnabledTimeout
	if err := sc.Buttons.WaitEnabled(ctx, m.ElementID, timeout); err != nil {
		return core.ErrElementNotEnabled.WithMessagef("Check-in button not clickable within %v", timeout).WithCause(err)
	}
	if err := sc.Session.ClickElement(m.ElementID); err != nil {
		return core.ErrElementNotFound.WithMessage("Check-in button vanished before click").WithCause(err)
	}
	return nil
}

func pressButton(ctx context.Context, sc *Context, args []string) error {
	return sc.Buttons.ClickLogicalButton(ctx, args[0])
}

func seeResponseMessage(ctx context.Context, sc *Context, _ []string) error {
	_, err := sc.Require(ctx, responseMessageTarget, sc.opts.Interaction.ResponseTimeout)
	return err
}

func seeResponseMessageText(ctx context.Context, sc *Context, args []string) error {
	_, err := sc.Responses.ExpectResponseAfter(ctx, args[0])
	return err
}

func backgroundApp(ctx context.Context, sc *Context, args []string) error {
	secs, err := strconv.Atoi(args[0])
	if err != nil || secs < 0 {
		return core.ErrInvalidConfig.WithMessagef("invalid background duration %q", args[0])
	}
	if err := sc.Session.BackgroundApp(time.Duration(secs) * time.Second); err != nil {
		return core.ErrAppNotRunning.WithMessage("background app").WithCause(err)
	}
	return nil
}

func restartApp(ctx context.Context, sc *Context, _ []string) error {
	pkg := sc.opts.AppPackage
	if err := sc.Session.TerminateApp(pkg); err != nil {
		logger.Warn("terminate %s: %v", pkg, err)
	}
	if err := sc.Session.ActivateApp(pkg); err != nil {
		return core.ErrAppNotRunning.WithMessagef("activate %s", pkg).WithCause(err)
	}
	return nil
}
