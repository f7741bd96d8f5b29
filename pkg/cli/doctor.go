package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/checkin-runner/pkg/device"
	"github.com/devicelab-dev/checkin-runner/pkg/driver/appium"
)

var doctorCommand = &cli.Command{
	Name:  "doctor",
	Usage: "Verify the local setup: adb, devices, Appium server, app file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "app",
			Usage: "App binary expected next to the scenarios",
			Value: "./app.apk",
		},
	},
	Action: runDoctor,
}

type checkLevel int

const (
	checkOK checkLevel = iota
	checkWarn
	checkFail
)

type checkResult struct {
	Name   string
	Level  checkLevel
	Detail string
}

func runDoctor(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var results []checkResult
	adb, adbErr := device.Find()
	if adbErr != nil {
		results = append(results, checkResult{"ADB", checkFail, adbErr.Error()})
	} else {
		results = append(results, checkResult{"ADB", checkOK, adb.Path})
		results = append(results, checkDevices(adb, cfg.AppPackage())...)
	}
	results = append(results,
		checkAndroidHome(),
		checkAppiumBinary(),
		checkAppiumServer(cfg.Appium.URL),
		checkAppFile(c.String("app"), c.IsSet("app")),
	)

	failed := printChecks(results)
	if failed > 0 {
		return fmt.Errorf("setup verification failed: %d check(s) failed", failed)
	}
	return nil
}

// checkDevices reports attached devices and whether the app is installed on
// each ready one.
func checkDevices(adb *device.ADB, pkg string) []checkResult {
	devices, err := adb.Devices()
	if err != nil {
		return []checkResult{{"Devices", checkFail, err.Error()}}
	}
	if len(devices) == 0 {
		return []checkResult{{"Devices", checkWarn, "no devices connected; start an emulator or connect a device"}}
	}

	var results []checkResult
	for _, d := range devices {
		if !d.Ready() {
			results = append(results, checkResult{"Device " + d.Serial, checkWarn, d.State})
			continue
		}
		detail := "ready"
		if info, err := adb.Info(d.Serial); err == nil {
			detail = fmt.Sprintf("%s, Android %s (SDK %s)", info.Model, info.Release, info.SDK)
		}
		results = append(results, checkResult{"Device " + d.Serial, checkOK, detail})

		installed, err := adb.IsInstalled(d.Serial, pkg)
		switch {
		case err != nil:
			results = append(results, checkResult{"App " + pkg, checkWarn, err.Error()})
		case installed:
			results = append(results, checkResult{"App " + pkg, checkOK, "installed on " + d.Serial})
		default:
			results = append(results, checkResult{"App " + pkg, checkFail, "not installed on " + d.Serial})
		}
	}
	return results
}

func checkAndroidHome() checkResult {
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if v := os.Getenv(env); v != "" {
			return checkResult{"ANDROID_HOME", checkOK, v}
		}
	}
	return checkResult{"ANDROID_HOME", checkWarn, "not set; point it at your Android SDK"}
}

func checkAppiumBinary() checkResult {
	path, err := exec.LookPath("appium")
	if err != nil {
		return checkResult{"Appium binary", checkWarn, "not on PATH (fine when the server runs elsewhere)"}
	}
	return checkResult{"Appium binary", checkOK, path}
}

func checkAppiumServer(url string) checkResult {
	ready, msg, err := appium.NewClient(url).Status()
	switch {
	case err != nil:
		return checkResult{"Appium server", checkFail, fmt.Sprintf("%s unreachable: %v", url, err)}
	case !ready:
		return checkResult{"Appium server", checkFail, fmt.Sprintf("%s not ready: %s", url, msg)}
	default:
		return checkResult{"Appium server", checkOK, url}
	}
}

// checkAppFile fails only when the path was given explicitly.
func checkAppFile(path string, explicit bool) checkResult {
	if _, err := os.Stat(path); err != nil {
		level := checkWarn
		if explicit {
			level = checkFail
		}
		return checkResult{"App file", level, path + " missing"}
	}
	return checkResult{"App file", checkOK, path}
}

func printChecks(results []checkResult) int {
	failed := 0
	fmt.Fprintln(stdout)
	for _, r := range results {
		var symbol, symbolColor string
		switch r.Level {
		case checkOK:
			symbol, symbolColor = "✓", color(colorGreen)
		case checkWarn:
			symbol, symbolColor = "⚠", color(colorYellow)
		default:
			symbol, symbolColor = "✗", color(colorRed)
			failed++
		}
		fmt.Fprintf(stdout, "  %s%s%s %-28s %s%s%s\n",
			symbolColor, symbol, color(colorReset), r.Name, color(colorGray), r.Detail, color(colorReset))
	}
	fmt.Fprintln(stdout)
	return failed
}
