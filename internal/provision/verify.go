package provision

import (
	"context"
	"fmt"
	"strings"
)

// libraryProbe maps package names to the shared object the browser engine
// actually loads from them. Utility packages have no shared object to probe.
var libraryProbe = map[string]string{
	"libasound2":         "libasound.so",
	"libatk-bridge2.0-0": "libatk-bridge-2.0.so",
	"libatk1.0-0":        "libatk-1.0.so",
	"libcairo2":          "libcairo.so",
	"libcups2":           "libcups.so",
	"libdbus-1-3":        "libdbus-1.so",
	"libdrm2":            "libdrm.so",
	"libgbm1":            "libgbm.so",
	"libglib2.0-0":       "libglib-2.0.so",
	"libnspr4":           "libnspr4.so",
	"libnss3":            "libnss3.so",
	"libpango-1.0-0":     "libpango-1.0.so",
	"libx11-6":           "libX11.so",
	"libxcb1":            "libxcb.so",
	"libxcomposite1":     "libXcomposite.so",
	"libxdamage1":        "libXdamage.so",
	"libxext6":           "libXext.so",
	"libxfixes3":         "libXfixes.so",
	"libxkbcommon0":      "libxkbcommon.so",
	"libxrandr2":         "libXrandr.so",
}

// Verify checks a built image: every shared library the browser engine
// needs resolves inside it, and the workdir matches where the application
// files were copied. Verification runs the probe inside the image via the
// configured build tool.
func (b *Builder) Verify(ctx context.Context, spec ImageSpec, opts Options) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if opts.Builder == "" {
		opts.Builder = "docker"
	}
	if opts.Tag == "" {
		opts.Tag = "quizd:latest"
	}

	out, err := b.runner.Run(ctx, "", opts.Builder,
		"run", "--rm", "--entrypoint", "/sbin/ldconfig", opts.Tag, "-p")
	if err != nil {
		return fmt.Errorf("probe shared libraries: %w: %s", err, string(out))
	}
	if missing := missingLibraries(spec.Packages, string(out)); len(missing) > 0 {
		return fmt.Errorf("image is missing shared libraries: %s", strings.Join(missing, ", "))
	}

	out, err = b.runner.Run(ctx, "", opts.Builder,
		"run", "--rm", "--entrypoint", "/bin/pwd", opts.Tag)
	if err != nil {
		return fmt.Errorf("probe workdir: %w: %s", err, string(out))
	}
	if got := strings.TrimSpace(string(out)); got != spec.Workdir {
		return fmt.Errorf("image workdir %q does not match spec workdir %q", got, spec.Workdir)
	}
	return nil
}

// missingLibraries returns the packages whose shared object is absent from
// the ldconfig cache listing.
func missingLibraries(packages []string, ldconfigOut string) []string {
	var missing []string
	for _, pkg := range packages {
		lib, ok := libraryProbe[pkg]
		if !ok {
			continue
		}
		if !strings.Contains(ldconfigOut, lib) {
			missing = append(missing, pkg)
		}
	}
	return missing
}
