// Package device inspects Android devices via ADB for setup checks.
package device

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Device is one entry of `adb devices`.
type Device struct {
	Serial string
	State  string // device, offline, unauthorized
}

// Ready reports whether the device accepts commands.
func (d Device) Ready() bool {
	return d.State == "device"
}

// Info contains basic device properties.
type Info struct {
	Serial     string
	Model      string
	SDK        string
	Release    string
	IsEmulator bool
}

// Runner executes adb with the given arguments and returns stdout.
type Runner func(args ...string) (string, error)

// ADB wraps the adb binary.
type ADB struct {
	Path string
	run  Runner
}

// Find locates adb on PATH, then under ANDROID_HOME or ANDROID_SDK_ROOT.
func Find() (*ADB, error) {
	path, err := findADB()
	if err != nil {
		return nil, err
	}
	a := &ADB{Path: path}
	a.run = a.exec
	return a, nil
}

// NewWithRunner creates an ADB that sends commands to run.
func NewWithRunner(run Runner) *ADB {
	return &ADB{Path: "adb", run: run}
}

// Devices lists attached devices in any state.
func (a *ADB) Devices() ([]Device, error) {
	out, err := a.run("devices")
	if err != nil {
		return nil, err
	}
	return ParseDevices(out), nil
}

// ParseDevices parses `adb devices` output.
func ParseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			devices = append(devices, Device{Serial: parts[0], State: parts[1]})
		}
	}
	return devices
}

// Info reads model and OS properties of a device.
func (a *ADB) Info(serial string) (Info, error) {
	info := Info{Serial: serial, IsEmulator: strings.HasPrefix(serial, "emulator-")}
	props := map[string]*string{
		"ro.product.model":         &info.Model,
		"ro.build.version.sdk":     &info.SDK,
		"ro.build.version.release": &info.Release,
	}
	for name, dst := range props {
		out, err := a.run("-s", serial, "shell", "getprop", name)
		if err != nil {
			return info, err
		}
		*dst = strings.TrimSpace(out)
	}
	return info, nil
}

// IsInstalled checks whether pkg is installed on the device.
func (a *ADB) IsInstalled(serial, pkg string) (bool, error) {
	out, err := a.run("-s", serial, "shell", "pm", "list", "packages", pkg)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true, nil
		}
	}
	return false, nil
}

func (a *ADB) exec(args ...string) (string, error) {
	cmd := exec.Command(a.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}
	return stdout.String(), nil
}

func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	bin := "adb"
	if runtime.GOOS == "windows" {
		bin = "adb.exe"
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		root := os.Getenv(env)
		if root == "" {
			continue
		}
		path := filepath.Join(root, "platform-tools", bin)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("adb not found in PATH or ANDROID_HOME; ensure Android SDK is installed")
}
