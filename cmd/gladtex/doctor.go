package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	TeX      texInfo    `json:"tex"`
	Chrome   chromeInfo `json:"chrome"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// texInfo holds TeX toolchain detection results.
type texInfo struct {
	LaTeX   toolInfo `json:"latex"`
	Dvisvgm toolInfo `json:"dvisvgm"`
	Dvipng  toolInfo `json:"dvipng"`
}

// toolInfo holds detection results for one external tool.
type toolInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results, relevant only for
// the MathJax renderer.
type chromeInfo struct {
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment) int {
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
		}
	}

	result := runDoctor()

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor() *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	checkTeX(result)
	checkChrome(result)
	checkEnvironment(result)
	checkSystem(result)

	// Determine final status
	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkTeX locates the latex toolchain.
func checkTeX(result *doctorResult) {
	evaluateTeX(result, texInfo{
		LaTeX:   lookupTool("latex", "--version"),
		Dvisvgm: lookupTool("dvisvgm", "--version"),
		Dvipng:  lookupTool("dvipng", "--version"),
	})
}

// evaluateTeX classifies the detected toolchain. Missing latex is an
// error; a missing dvi converter only degrades the available output
// formats.
func evaluateTeX(result *doctorResult, tex texInfo) {
	result.TeX = tex

	if !result.TeX.LaTeX.Found {
		result.Errors = append(result.Errors,
			"latex not found. Install a TeX distribution, e.g. TeX Live or MikTeX, or use --mathjax")
		return
	}
	if !result.TeX.Dvisvgm.Found && !result.TeX.Dvipng.Found {
		result.Errors = append(result.Errors,
			"neither dvisvgm nor dvipng found; no image format can be produced")
		return
	}
	if !result.TeX.Dvisvgm.Found {
		result.Warnings = append(result.Warnings,
			"dvisvgm not found; only PNG output (--png) will work")
	}
	if !result.TeX.Dvipng.Found {
		result.Warnings = append(result.Warnings,
			"dvipng not found; only SVG output will work")
	}
}

// lookupTool finds a tool on the PATH and asks it for its version.
func lookupTool(name, versionFlag string) toolInfo {
	path, err := exec.LookPath(name)
	if err != nil {
		return toolInfo{}
	}
	info := toolInfo{Found: true, Path: path}
	out, err := exec.Command(path, versionFlag).Output() // #nosec G204 -- fixed tool name
	if err == nil {
		line, _, _ := strings.Cut(string(out), "\n")
		info.Version = strings.TrimSpace(line)
	}
	return info
}

// checkChrome detects Chrome/Chromium for the MathJax renderer. Absence
// is only a warning since the default renderer does not need a browser.
func checkChrome(result *doctorResult) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		// Use rod's launcher to locate Chrome
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found; --mathjax will download a managed Chromium on first run")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies system requirements.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "gladtex-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "gladtex doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "TeX toolchain")
	printTool(w, "latex", r.TeX.LaTeX)
	printTool(w, "dvisvgm", r.TeX.Dvisvgm)
	printTool(w, "dvipng", r.TeX.Dvipng)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium (for --mathjax)")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
	} else {
		fmt.Fprintln(w, "  [WARN] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to convert")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

// printTool prints one tool line of the TeX section.
func printTool(w io.Writer, name string, t toolInfo) {
	if t.Found {
		if t.Version != "" {
			fmt.Fprintf(w, "  [OK] %s: %s (%s)\n", name, t.Path, t.Version)
		} else {
			fmt.Fprintf(w, "  [OK] %s: %s\n", name, t.Path)
		}
	} else {
		fmt.Fprintf(w, "  [MISSING] %s\n", name)
	}
}
