package provision

import (
	"fmt"
	"sort"
	"strings"
)

// Render produces the containerfile for the spec. Output is byte-identical
// for equal specs: package lists keep their declared order and environment
// keys are emitted sorted, so rebuilds from the same spec produce the same
// layer cache keys.
func Render(spec ImageSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", fmt.Errorf("render image spec: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", spec.BaseImage)

	// One install layer; the index cache is purged in the same layer to
	// keep it out of the image.
	packages := append([]string(nil), spec.Packages...)
	if spec.BrowserPackage != "" {
		packages = append(packages, spec.BrowserPackage)
	}
	b.WriteString("RUN apt-get update \\\n")
	b.WriteString("    && apt-get install -y --no-install-recommends \\\n")
	for _, pkg := range packages {
		fmt.Fprintf(&b, "        %s \\\n", pkg)
	}
	b.WriteString("    && rm -rf /var/lib/apt/lists/*\n\n")

	fmt.Fprintf(&b, "WORKDIR %s\n\n", spec.Workdir)

	for _, c := range spec.Copies {
		fmt.Fprintf(&b, "COPY %s %s\n", c.Source, c.Dest)
	}
	if len(spec.Copies) > 0 {
		b.WriteString("\n")
	}

	if len(spec.Env) > 0 {
		keys := make([]string, 0, len(spec.Env))
		for k := range spec.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "ENV %s=%s\n", k, spec.Env[k])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "EXPOSE %d\n\n", spec.Port)

	quoted := make([]string, len(spec.Entrypoint))
	for i, arg := range spec.Entrypoint {
		quoted[i] = fmt.Sprintf("%q", arg)
	}
	fmt.Fprintf(&b, "ENTRYPOINT [%s]\n", strings.Join(quoted, ", "))

	return b.String(), nil
}
