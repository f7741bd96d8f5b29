package steps

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/driver/mock"
)

func testOptions() Options {
	o := DefaultOptions()
	o.Profile.FastProbe = time.Millisecond
	o.Profile.Normal = 10 * time.Millisecond
	o.Gestures.TapSettle = 0
	o.Gestures.SwipeSettle = 0
	o.Interaction.ConfirmPause = 0
	o.Interaction.RescanPause = 0
	o.Interaction.ButtonTimeout = 0
	o.Interaction.EnabledTimeout = 0
	o.Interaction.ResponseTimeout = 0
	o.Interaction.ButtonSettle = 0
	o.Interaction.PollInterval = time.Millisecond
	o.ResponseSettle = 0
	o.ToastTimeout = 0
	o.ScreenTimeout = 0
	return o
}

func run(t *testing.T, d *mock.Driver, opts Options, text string) error {
	t.Helper()
	_, err := Default().Run(context.Background(), NewContext(d, opts), text)
	return err
}

func TestCheckBluChip_TwoSwipesAway(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "header", Class: "android.widget.TextView", Text: "Passenger details", Page: mock.AnyPage, Bounds: core.Bounds{X: 0, Y: 0, Width: 1080, Height: 120}},
		{ID: "other-box", Class: "android.widget.CheckBox", Checkable: true, Page: 2, Bounds: core.Bounds{X: 900, Y: 300, Width: 60, Height: 60}},
		{ID: "bluchip-label", Class: "android.widget.TextView", Text: "BluChip", ContentDesc: "bluchip-checkbox-box", Page: 2, Bounds: core.Bounds{X: 100, Y: 1000, Width: 600, Height: 100}},
		{ID: "bluchip-box", Class: "android.widget.CheckBox", Checkable: true, Page: 2, Bounds: core.Bounds{X: 900, Y: 1020, Width: 60, Height: 60}},
	}})

	if err := run(t, d, testOptions(), "I check the BluChip checkbox"); err != nil {
		t.Fatalf("step error = %v", err)
	}
	if !d.Element("bluchip-box").Checked {
		t.Error("BluChip checkbox should be checked")
	}
	if d.Element("other-box").Checked {
		t.Error("unrelated checkbox toggled")
	}
	if d.Swipes != 2 {
		t.Errorf("swipes = %d, want 2", d.Swipes)
	}
}

func TestCheckDeclaration_DirectCheckbox(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "decl", Class: "android.widget.CheckBox", Checkable: true, ContentDesc: "declaration-checkbox-box", Bounds: core.Bounds{X: 40, Y: 1800, Width: 60, Height: 60}},
	}})

	if err := run(t, d, testOptions(), "I check the dangerous goods declaration checkbox"); err != nil {
		t.Fatalf("step error = %v", err)
	}
	if !d.Element("decl").Checked || len(d.Clicks) != 1 {
		t.Errorf("checked = %v, clicks = %v", d.Element("decl").Checked, d.Clicks)
	}
}

func TestClickGetStarted_NotFound(t *testing.T) {
	var elems []*mock.Element
	for i := 0; i < 12; i++ {
		elems = append(elems, &mock.Element{ID: fmt.Sprintf("row%d", i), Class: "android.widget.TextView", Text: fmt.Sprintf("Row %d", i)})
	}
	d := mock.New(mock.Config{Elements: elems})

	err := run(t, d, testOptions(), "I click the get started button")
	if !errors.Is(err, core.ErrButtonNotFound) {
		t.Fatalf("error = %v, want ErrButtonNotFound", err)
	}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		if v, _ := execErr.Details["visible"].([]string); len(v) > 10 {
			t.Errorf("dump has %d entries, want at most 10", len(v))
		}
	}
}

func TestClickGetStarted_GenericButtonFallback(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "go", Class: "android.widget.Button", Text: "Continue"},
	}})
	if err := run(t, d, testOptions(), "I click the get started button"); err != nil {
		t.Fatalf("step error = %v", err)
	}
	if len(d.Clicks) != 1 || d.Clicks[0] != "go" {
		t.Errorf("clicks = %v", d.Clicks)
	}
}

func TestEnterPNRAndLastName(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "title", Class: "android.widget.TextView", Text: "Check-in"},
		{ID: "pnr", Class: "android.widget.EditText", Text: "Enter your PNR", Value: "old"},
		{ID: "name", Class: "android.widget.EditText", Text: "Enter your Last Name"},
	}})
	opts := testOptions()
	opts.Env = map[string]string{"PNR": "ABC123"}
	sc := NewContext(d, opts)
	r := Default()

	for _, text := range []string{
		"I am on the check-in screen",
		`I enter PNR "${PNR}"`,
		`I enter last name "Smith"`,
	} {
		if _, err := r.Run(context.Background(), sc, text); err != nil {
			t.Fatalf("%q: %v", text, err)
		}
	}
	if got := d.Element("pnr").Value; got != "ABC123" {
		t.Errorf("PNR value = %q, want ABC123 (cleared first)", got)
	}
	if got := d.Element("name").Value; got != "Smith" {
		t.Errorf("last name value = %q", got)
	}
}

func TestEnterLastName_FallsBackToSecondEditText(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "first", Class: "android.widget.EditText"},
		{ID: "second", Class: "android.widget.EditText"},
	}})
	if err := run(t, d, testOptions(), `I enter last name "Lee"`); err != nil {
		t.Fatalf("step error = %v", err)
	}
	if d.Element("second").Value != "Lee" {
		t.Errorf("second EditText value = %q", d.Element("second").Value)
	}
}

func TestCheckInScreen_Missing(t *testing.T) {
	d := mock.New(mock.Config{})
	if err := run(t, d, testOptions(), "I am on the check-in screen"); !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("error = %v, want ErrElementNotFound", err)
	}
}

func TestAppropriateResponse(t *testing.T) {
	tests := []struct {
		name    string
		element *mock.Element
		wantErr bool
	}{
		{"error toast", &mock.Element{ID: "toast", Class: "android.widget.Toast", Text: "Incorrect details"}, false},
		{"passenger details", &mock.Element{ID: "pd", ContentDesc: "passengerDetailsScreen"}, false},
		{"still on check-in", &mock.Element{ID: "title", Text: "Check-in"}, false},
		{"unknown screen", &mock.Element{ID: "x", Text: "Something else"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mock.New(mock.Config{Elements: []*mock.Element{tt.element}})
			err := run(t, d, testOptions(), "I should see an appropriate response")
			if tt.wantErr {
				if !errors.Is(err, core.ErrConditionNotMet) {
					t.Errorf("error = %v, want ErrConditionNotMet", err)
				}
				return
			}
			if err != nil {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestTapCheckIn_ScrollsAndClicks(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "btn", Class: "android.widget.Button", ContentDesc: "check-in-btn", Text: "Check-in", Page: 3},
	}})
	if err := run(t, d, testOptions(), "I tap the Check-in button"); err != nil {
		t.Fatalf("step error = %v", err)
	}
	if d.Swipes != 3 || len(d.Clicks) != 1 {
		t.Errorf("swipes = %d, clicks = %v", d.Swipes, d.Clicks)
	}
}

func TestTapCheckIn_Disabled(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "btn", Class: "android.widget.Button", ContentDesc: "check-in-btn", Disabled: true},
	}})
	if err := run(t, d, testOptions(), "I tap the Check-in button"); !errors.Is(err, core.ErrElementNotEnabled) {
		t.Errorf("error = %v, want ErrElementNotEnabled", err)
	}
}

func TestPressButtonAndResponse(t *testing.T) {
	d := mock.New(mock.Config{Elements: []*mock.Element{
		{ID: "login", Class: "android.widget.Button", ContentDesc: "Login", OnClick: func(d *mock.Driver) {
			d.Add(&mock.Element{ID: "resp", Class: "android.widget.TextView", ContentDesc: "ResponseMessage", Text: "Button pressed: Login"})
		}},
	}})
	sc := NewContext(d, testOptions())
	r := Default()

	if _, err := r.Run(context.Background(), sc, "I should see the response message"); !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("response before press: error = %v", err)
	}
	for _, text := range []string{
		`I press the "Login"`,
		"I should see the response message",
		`I should see the response message "Login"`,
	} {
		if _, err := r.Run(context.Background(), sc, text); err != nil {
			t.Fatalf("%q: %v", text, err)
		}
	}
}

func TestAppLaunched(t *testing.T) {
	t.Run("welcome text", func(t *testing.T) {
		d := mock.New(mock.Config{Elements: []*mock.Element{{ID: "w", ContentDesc: "welcome-text"}}})
		if err := run(t, d, testOptions(), "the app is launched"); err != nil {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("package fallback", func(t *testing.T) {
		d := mock.New(mock.Config{Package: "com.cucumberappiumdemo"})
		if err := run(t, d, testOptions(), "the app is launched"); err != nil {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("not running", func(t *testing.T) {
		d := mock.New(mock.Config{Package: "com.cucumberappiumdemo"})
		_ = d.TerminateApp("com.cucumberappiumdemo")
		err := run(t, d, testOptions(), "the app is launched")
		if !errors.Is(err, core.ErrAppNotRunning) {
			t.Errorf("error = %v, want ErrAppNotRunning", err)
		}
	})
}

func TestAppLifecycleSteps(t *testing.T) {
	d := mock.New(mock.Config{Package: "com.cucumberappiumdemo"})
	sc := NewContext(d, testOptions())
	r := Default()

	if _, err := r.Run(context.Background(), sc, "I put the app in the background for 3 seconds"); err != nil {
		t.Fatalf("background: %v", err)
	}
	if len(d.Backgrounded) != 1 || d.Backgrounded[0] != 3*time.Second {
		t.Errorf("Backgrounded = %v", d.Backgrounded)
	}
	if _, err := r.Run(context.Background(), sc, "I restart the app"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if d.Terminations != 1 || d.Activations != 1 {
		t.Errorf("terminations = %d, activations = %d", d.Terminations, d.Activations)
	}
	if pkg, _ := d.CurrentPackage(); pkg != "com.cucumberappiumdemo" {
		t.Errorf("CurrentPackage() = %q", pkg)
	}
}
