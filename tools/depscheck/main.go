package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "betterhud/server/"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages matching pattern from importing any of forbidden.
type rule struct {
	pattern   string
	forbidden []string
}

// The refresh engine and its collaborators stay independent of the host
// world and the transport so they can be embedded elsewhere.
var rules = []rule{
	{
		pattern:   "./internal/hud/...",
		forbidden: []string{"internal/game", "internal/net", "internal/app", "internal/command"},
	},
	{
		pattern:   "./internal/overlay/...",
		forbidden: []string{"internal/hud", "internal/game", "internal/net", "internal/app"},
	},
	{
		pattern:   "./internal/inventory/...",
		forbidden: []string{"internal/hud", "internal/overlay", "internal/game", "internal/net", "internal/app"},
	},
	{
		pattern:   "./internal/ui/...",
		forbidden: []string{"internal/hud", "internal/overlay", "internal/game", "internal/net", "internal/app"},
	},
	{
		pattern:   "./logging/...",
		forbidden: []string{"internal/"},
	},
}

func main() {
	var violations []string
	for _, r := range rules {
		found, err := check(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "depscheck: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, found...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func check(r rule) ([]string, error) {
	cmd := exec.Command("go", "list", "-json", r.pattern)
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Stderr.Write(exitErr.Stderr)
		}
		return nil, fmt.Errorf("failed to list %s: %w", r.pattern, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))
	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode package info: %w", err)
		}
		for _, imp := range pkg.Imports {
			if !strings.HasPrefix(imp, modulePath) {
				continue
			}
			local := strings.TrimPrefix(imp, modulePath)
			for _, prefix := range r.forbidden {
				if strings.HasPrefix(local, prefix) {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	return violations, nil
}
