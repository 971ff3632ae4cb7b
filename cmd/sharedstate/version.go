package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// trackedModules are the dependencies whose versions version reports.
var trackedModules = []string{
	"github.com/a-h/templ",
	"github.com/go-chi/chi/v5",
	"github.com/gorilla/websocket",
	"github.com/prometheus/client_golang",
	"github.com/vmihailenco/msgpack/v5",
	"go.opentelemetry.io/otel",
}

// buildInfo describes the running binary.
type buildInfo struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	Built     string            `json:"built"`
	GoVersion string            `json:"goVersion"`
	Platform  string            `json:"platform"`
	Module    string            `json:"module,omitempty"`
	Deps      map[string]string `json:"deps,omitempty"`
}

func readBuildInfo() buildInfo {
	info := buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.Module = bi.Main.Path
	for _, dep := range bi.Deps {
		for _, path := range trackedModules {
			if dep.Path == path {
				if info.Deps == nil {
					info.Deps = make(map[string]string)
				}
				info.Deps[path] = dep.Version
			}
		}
	}
	return info
}

func (b buildInfo) writeText(w io.Writer) {
	fmt.Fprintf(w, "  Version:    %s\n", b.Version)
	fmt.Fprintf(w, "  Commit:     %s\n", b.Commit)
	fmt.Fprintf(w, "  Built:      %s\n", b.Built)
	fmt.Fprintf(w, "  Go version: %s\n", b.GoVersion)
	fmt.Fprintf(w, "  OS/Arch:    %s\n", b.Platform)
	if b.Module != "" {
		fmt.Fprintf(w, "  Module:     %s\n", b.Module)
	}
	if len(b.Deps) == 0 {
		return
	}
	fmt.Fprintln(w, "  Dependencies:")
	for _, path := range trackedModules {
		if v, ok := b.Deps[path]; ok {
			fmt.Fprintf(w, "    %-40s %s\n", strings.TrimPrefix(path, "github.com/"), v)
		}
	}
}

func versionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the sharedstate version and build metadata, including the versions
of key modules compiled into the binary.

Examples:
  sharedstate version
  sharedstate version --short
  sharedstate version --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch {
			case short:
				fmt.Fprintln(w, version)
				return nil
			case asJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(readBuildInfo())
			default:
				readBuildInfo().writeText(w)
				return nil
			}
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")

	return cmd
}
