//go:build ignore

// build.go - Ferroci Build System
// Usage: go run build.go [-target=TARGET]
// Targets: all, gui, batch, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"ferroci/pkg/contracts"
)

const (
	module       = "ferroci"
	contractsPkg = module + "/pkg/contracts"
)

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose   bool
	GOOS      string
	GOARCH    string
	GitCommit string
}

var (
	rootDir string
	distDir string

	// Executable names (key = source dir name under cmd/, value = output name without extension)
	executables = map[string]string{
		"ferroci":       "Ferroci",
		"ferroci-batch": "ferroci-batch",
	}

	releasePlatforms = []string{"windows/amd64", "linux/amd64", "darwin/arm64"}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd
	distDir = filepath.Join(rootDir, "dist")
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	goos := flag.String("os", runtime.GOOS, "Target operating system")
	goarch := flag.String("arch", runtime.GOARCH, "Target architecture")
	flag.Parse()

	if runtime.GOOS == "windows" {
		disableColors()
	}

	printHeader()
	startTime := time.Now()

	ctx := &BuildContext{
		Verbose:   *verbose,
		GOOS:      *goos,
		GOARCH:    *goarch,
		GitCommit: gitCommit(),
	}

	var err error
	switch *target {
	case "all":
		err = buildAll(ctx)
	case "gui":
		err = buildExecutable("ferroci", ctx)
	case "batch":
		err = buildExecutable("ferroci-batch", ctx)
	case "test":
		err = runTests(ctx.Verbose)
	case "clean":
		err = clean()
	case "release":
		err = buildRelease(ctx)
	default:
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Printf("%s========================================%s\n", colorCyan, colorReset)
	fmt.Printf("%s  %s Build System%s\n", colorCyan, contracts.GetVersionString(), colorReset)
	fmt.Printf("%s========================================%s\n\n", colorCyan, colorReset)
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorCyan, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[OK]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARN]%s %s\n", colorYellow, colorReset, msg)
}

// older Windows consoles print escape codes literally
func disableColors() {
	if os.Getenv("WT_SESSION") != "" {
		return
	}
	colorReset, colorRed, colorGreen, colorYellow, colorCyan = "", "", "", "", ""
}

func buildAll(ctx *BuildContext) error {
	printInfo("Building all components...")
	if err := os.MkdirAll(distDir, 0755); err != nil {
		return fmt.Errorf("create dist directory: %w", err)
	}
	for _, name := range []string{"ferroci", "ferroci-batch"} {
		if err := buildExecutable(name, ctx); err != nil {
			return err
		}
	}
	return copyConfigFiles(distDir)
}

func outputName(name, goos string) string {
	out := executables[name]
	if goos == "windows" {
		out += ".exe"
	}
	return out
}

func ldflags(ctx *BuildContext) string {
	return fmt.Sprintf("-s -w -X %s.BuildTime=%s -X %s.GitCommit=%s",
		contractsPkg, time.Now().UTC().Format(time.RFC3339),
		contractsPkg, ctx.GitCommit)
}

func buildExecutable(name string, ctx *BuildContext) error {
	return buildExecutableTo(name, ctx, distDir)
}

func buildExecutableTo(name string, ctx *BuildContext, outDir string) error {
	printInfo(fmt.Sprintf("Building %s (%s/%s)...", name, ctx.GOOS, ctx.GOARCH))

	args := []string{
		"build",
		"-trimpath",
		"-ldflags", ldflags(ctx),
		"-o", filepath.Join(outDir, outputName(name, ctx.GOOS)),
		"./cmd/" + name,
	}
	// the GUI build hides the console window on Windows
	if name == "ferroci" && ctx.GOOS == "windows" {
		args[3] += " -H=windowsgui"
	}
	if ctx.Verbose {
		args = append([]string{args[0], "-v"}, args[1:]...)
	}

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=0",
		"GOOS="+ctx.GOOS,
		"GOARCH="+ctx.GOARCH,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to build %s: %w", name, err)
	}

	printSuccess(fmt.Sprintf("Built %s", outputName(name, ctx.GOOS)))
	return nil
}

func runTests(verbose bool) error {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go tests failed: %w", err)
	}

	printSuccess("All tests passed")
	return nil
}

func clean() error {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clean dist directory: %w", err)
	}
	printSuccess("Build artifacts cleaned")
	return nil
}

// buildRelease cross-compiles every executable into dist/<os>-<arch>/
func buildRelease(ctx *BuildContext) error {
	printInfo("Building release version...")
	if err := clean(); err != nil {
		return err
	}

	for _, platform := range releasePlatforms {
		goos, goarch, _ := strings.Cut(platform, "/")
		pctx := *ctx
		pctx.GOOS, pctx.GOARCH = goos, goarch

		outDir := filepath.Join(distDir, goos+"-"+goarch)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", outDir, err)
		}
		for name := range executables {
			if err := buildExecutableTo(name, &pctx, outDir); err != nil {
				return err
			}
		}
		if err := copyConfigFiles(outDir); err != nil {
			return err
		}

		versionFile := filepath.Join(outDir, "VERSION.txt")
		content := fmt.Sprintf("%s\nPlatform: %s\nCommit: %s\nBuilt: %s\n",
			contracts.GetVersionString(), platform, ctx.GitCommit, time.Now().Format("2006-01-02 15:04:05"))
		if err := os.WriteFile(versionFile, []byte(content), 0644); err != nil {
			printWarning(fmt.Sprintf("Failed to write %s: %v", versionFile, err))
		}
	}

	printSuccess("Release build completed")
	return nil
}

// copyConfigFiles ships the example configuration next to the binaries
func copyConfigFiles(dest string) error {
	src := filepath.Join(rootDir, "configs", "config.example.yaml")
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return os.WriteFile(filepath.Join(dest, filepath.Base(src)), data, 0644)
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func showHelp() {
	fmt.Println("Usage: go run build.go -target=TARGET [-v] [-os=GOOS] [-arch=GOARCH]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all       Build the GUI and the batch CLI into dist/")
	fmt.Println("  gui       Build the GUI (cmd/ferroci)")
	fmt.Println("  batch     Build the batch CLI (cmd/ferroci-batch)")
	fmt.Println("  test      Run go test -race ./...")
	fmt.Println("  clean     Remove dist/")
	fmt.Println("  release   Cross-compile for " + strings.Join(releasePlatforms, ", "))
}
