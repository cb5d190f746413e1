package supervise

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	subsys "github.com/axondata/go-subsys"
)

// Auto-processing property prefixes. The level follows the prefix:
//
//	supervise.auto.install.1 = "db cache"
//	supervise.auto.start.2   = "web"
//	supervise.unit.web.cmd   = "/usr/bin/web --port 8080"
//	supervise.unit.web.env.PORT = "8080"
const (
	PropAutoInstall = "supervise.auto.install."
	PropAutoStart   = "supervise.auto.start."
	PropUnit        = "supervise.unit."
)

// AutoProcess installs every unit named in the install and start lists of
// props into fc and marks the start-listed ones for startup. Levels are
// processed in ascending order; a unit named in a start list is installed
// even when no install list names it.
func AutoProcess(props subsys.Properties, fc FrameworkContext) error {
	installs, err := autoLevels(props, PropAutoInstall)
	if err != nil {
		return err
	}
	starts, err := autoLevels(props, PropAutoStart)
	if err != nil {
		return err
	}

	seen := make(map[int]struct{}, len(installs)+len(starts))
	var levels []int
	for _, m := range []map[int][]string{installs, starts} {
		for level := range m {
			if _, ok := seen[level]; !ok {
				seen[level] = struct{}{}
				levels = append(levels, level)
			}
		}
	}
	sort.Ints(levels)

	installed := make(map[string]bool)
	for _, level := range levels {
		names := append(append([]string(nil), installs[level]...), starts[level]...)
		for _, name := range names {
			if installed[name] {
				continue
			}
			unit, err := UnitFromProperties(props, name)
			if err != nil {
				return err
			}
			if err := fc.Install(unit); err != nil {
				return err
			}
			installed[name] = true
		}

		for _, name := range starts[level] {
			if err := fc.MarkStart(name, level); err != nil {
				return err
			}
		}
	}
	return nil
}

// autoLevels reads the per-level name lists under prefix
func autoLevels(props subsys.Properties, prefix string) (map[int][]string, error) {
	out := make(map[int][]string)
	for key, value := range props.WithPrefix(prefix) {
		level, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("supervise: property %s%s: level is not an integer", prefix, key)
		}
		out[level] = append(out[level], strings.Fields(value)...)
	}
	return out, nil
}

// UnitFromProperties builds the unit declared under supervise.unit.<name>
func UnitFromProperties(props subsys.Properties, name string) (Unit, error) {
	decl := props.WithPrefix(PropUnit + name + ".")
	if len(decl) == 0 {
		return Unit{}, fmt.Errorf("%w: %s", ErrUnknownUnit, name)
	}

	unit := Unit{
		Name:   name,
		Cmd:    decl.GetFields("cmd"),
		Cwd:    decl.GetString("cwd", ""),
		Finish: decl.GetFields("finish"),
	}
	if len(unit.Cmd) == 0 {
		return Unit{}, fmt.Errorf("%w: %s has no cmd", ErrInvalidUnit, name)
	}

	logs, err := decl.GetBool("log", false)
	if err != nil {
		return Unit{}, fmt.Errorf("%w: %s: %w", ErrInvalidUnit, name, err)
	}
	unit.Log = logs

	if env := decl.WithPrefix("env."); len(env) > 0 {
		unit.Env = make(map[string]string, len(env))
		for key, value := range env {
			// property keys are case-folded; environment names are upper-case by convention
			unit.Env[strings.ToUpper(key)] = value
		}
	}

	return unit, nil
}
