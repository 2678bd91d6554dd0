// Package provision assembles the runtime container image for the service:
// a minimal base layer, the shared libraries the headless browser engine
// needs, the service binary, and the launch directive.
package provision

import (
	"fmt"
	"strings"
)

// DefaultPort is the HTTP port the runtime image exposes.
const DefaultPort = 7860

// browserLibraries is the fixed list of OS packages the sandboxed browser
// engine needs at runtime. Removing any entry must be checked against the
// engine's documented dependency list.
var browserLibraries = []string{
	"ca-certificates",
	"fonts-liberation",
	"libasound2",
	"libatk-bridge2.0-0",
	"libatk1.0-0",
	"libcairo2",
	"libcups2",
	"libdbus-1-3",
	"libdrm2",
	"libgbm1",
	"libglib2.0-0",
	"libnspr4",
	"libnss3",
	"libpango-1.0-0",
	"libx11-6",
	"libxcb1",
	"libxcomposite1",
	"libxdamage1",
	"libxext6",
	"libxfixes3",
	"libxkbcommon0",
	"libxrandr2",
	"wget",
	"xdg-utils",
}

// CopyStep copies a source path into the image relative to the workdir.
type CopyStep struct {
	Source string
	Dest   string
}

// ImageSpec describes the runtime image. The zero value is not usable; start
// from DefaultSpec.
type ImageSpec struct {
	// BaseImage is the image the runtime layer starts from.
	BaseImage string
	// Packages is the ordered list of OS packages to install.
	Packages []string
	// BrowserPackage installs the browser engine binary itself.
	BrowserPackage string
	// Workdir is the fixed working directory for all subsequent steps.
	Workdir string
	// Copies are the application files placed into the image.
	Copies []CopyStep
	// Env is baked into the image environment.
	Env map[string]string
	// Port is the declared listening port (documentary for orchestrators).
	Port int
	// Entrypoint launches the service bound to all interfaces on Port.
	Entrypoint []string
}

// DefaultSpec returns the image specification for the quiz-solving service.
func DefaultSpec() ImageSpec {
	return ImageSpec{
		BaseImage:      "debian:bookworm-slim",
		Packages:       append([]string(nil), browserLibraries...),
		BrowserPackage: "chromium",
		Workdir:        "/app",
		Copies: []CopyStep{
			{Source: "quizd", Dest: "."},
			{Source: "configs/", Dest: "configs/"},
		},
		Env: map[string]string{
			"QUIZD_SERVER_PORT": fmt.Sprintf("%d", DefaultPort),
		},
		Port:       DefaultPort,
		Entrypoint: []string{"./quizd", "serve"},
	}
}

// Validate checks the structural invariants of the spec. Every failure here
// would be a fatal build error, so it runs before any step executes.
func (s ImageSpec) Validate() error {
	if strings.TrimSpace(s.BaseImage) == "" {
		return fmt.Errorf("base image is required")
	}
	if len(s.Packages) == 0 {
		return fmt.Errorf("package list is empty")
	}
	for _, pkg := range s.Packages {
		if strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("package list contains an empty name")
		}
		if strings.ContainsAny(pkg, " \t\n") {
			return fmt.Errorf("package name %q contains whitespace", pkg)
		}
	}
	if !strings.HasPrefix(s.Workdir, "/") {
		return fmt.Errorf("workdir must be absolute, got %q", s.Workdir)
	}
	if len(s.Copies) == 0 {
		return fmt.Errorf("no application files to copy")
	}
	for _, c := range s.Copies {
		if strings.HasPrefix(c.Dest, "/") && !strings.HasPrefix(c.Dest, s.Workdir) {
			// Application files must land under the workdir so relative
			// paths resolve at runtime.
			return fmt.Errorf("copy dest %q escapes workdir %q", c.Dest, s.Workdir)
		}
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if len(s.Entrypoint) == 0 {
		return fmt.Errorf("entrypoint is required")
	}
	return nil
}
