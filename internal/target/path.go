// Package target addresses composite harness runs, either through a
// local harness binary or a remote harness server, and classifies their
// outcome.
package target

import (
	"fmt"
	"os"
	"strings"

	"github.com/Quidge/diffharness/internal/harness"
)

// LocalHarnessName is the reserved harness name for the local binary.
const LocalHarnessName = "local"

// TargetPath is the textual address of a target: "<configs>@<harness>",
// where configs is a comma separated, possibly empty, list of config ids.
type TargetPath struct {
	Configs []harness.ConfigID
	Harness string
}

// ParseTargetPath parses "cfg1,cfg2,...@harness".
func ParseTargetPath(s string) (TargetPath, error) {
	configStr, name, ok := strings.Cut(s, "@")
	if !ok {
		return TargetPath{}, fmt.Errorf("invalid target %q: format must be <configs>@<harness>", s)
	}
	if name == "" {
		return TargetPath{}, fmt.Errorf("invalid target %q: missing harness name", s)
	}

	var configs []harness.ConfigID
	if configStr != "" {
		parsed, err := harness.ParseConfigIDs(strings.Split(configStr, ","))
		if err != nil {
			return TargetPath{}, fmt.Errorf("invalid target %q: %w", s, err)
		}
		configs = parsed
	}
	return TargetPath{Configs: configs, Harness: name}, nil
}

// ParseTargetPaths parses every element of ss.
func ParseTargetPaths(ss []string) ([]TargetPath, error) {
	paths := make([]TargetPath, 0, len(ss))
	for _, s := range ss {
		p, err := ParseTargetPath(s)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (p TargetPath) String() string {
	ids := make([]string, len(p.Configs))
	for i, c := range p.Configs {
		ids[i] = c.String()
	}
	return strings.Join(ids, ",") + "@" + p.Harness
}

// Harness is where a target's composite run executes: a LocalHarness or
// a RemoteHarness.
type Harness interface {
	isHarness()
	String() string
}

// LocalHarness spawns the harness binary at Path.
type LocalHarness struct {
	Path string
}

// RemoteHarness sends the run to the harness server at Address.
type RemoteHarness struct {
	Address string
}

func (LocalHarness) isHarness()  {}
func (RemoteHarness) isHarness() {}

func (h LocalHarness) String() string  { return "local:" + h.Path }
func (h RemoteHarness) String() string { return "remote:" + h.Address }

// Target is a resolved TargetPath.
type Target struct {
	Harness Harness
	Configs []harness.ConfigID
}

func (t Target) String() string {
	ids := make([]string, len(t.Configs))
	for i, c := range t.Configs {
		ids[i] = c.String()
	}
	return strings.Join(ids, ",") + "@" + t.Harness.String()
}

// Resolve turns p into a Target. The local harness is localPath, or the
// running executable when localPath is empty.
func Resolve(p TargetPath, localPath string) (Target, error) {
	if p.Harness != LocalHarnessName {
		return Target{Harness: RemoteHarness{Address: p.Harness}, Configs: p.Configs}, nil
	}
	if localPath == "" {
		self, err := os.Executable()
		if err != nil {
			return Target{}, fmt.Errorf("failed to locate harness executable: %w", err)
		}
		localPath = self
	}
	return Target{Harness: LocalHarness{Path: localPath}, Configs: p.Configs}, nil
}

// Defaults builds the target list used when none was given explicitly:
// a single target running configs on server, or locally when server is
// empty.
func Defaults(configs []harness.ConfigID, server string) []TargetPath {
	name := server
	if name == "" {
		name = LocalHarnessName
	}
	return []TargetPath{{Configs: configs, Harness: name}}
}
