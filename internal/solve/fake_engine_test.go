package solve

import (
	"errors"
	"os"
)

// fakeEngine is a scripted Engine. Each Solve call pops the next status
// from script; once the script is exhausted the last status sticks.
type fakeEngine struct {
	status Status
	script []Status

	solves     int
	solveErr   error
	paramErr   error
	propErr    error
	propPanics bool
	exportErr  error

	params  map[string][]any
	exports []string
}

func newFakeEngine(script ...Status) *fakeEngine {
	return &fakeEngine{
		status: StatusNeutral,
		script: script,
		params: make(map[string][]any),
	}
}

func (f *fakeEngine) Status() Status {
	return f.status
}

func (f *fakeEngine) Solve() (bool, error) {
	f.solves++
	if f.solveErr != nil {
		return false, f.solveErr
	}
	if len(f.script) > 0 {
		f.status = f.script[0]
		f.script = f.script[1:]
	}
	return f.status == StatusOptimal || f.status == StatusFeasible || f.status == StatusBounded, nil
}

func (f *fakeEngine) Property(name string) (any, error) {
	if f.propPanics {
		panic("property table corrupted")
	}
	if f.propErr != nil {
		return nil, f.propErr
	}
	switch name {
	case PropEngineVersion:
		return "fake 1.0", nil
	case PropBestObjective:
		return 1.5, nil
	default:
		return f.solves, nil
	}
}

func (f *fakeEngine) SetParam(name string, value any) error {
	if f.paramErr != nil {
		return f.paramErr
	}
	f.params[name] = append(f.params[name], value)
	return nil
}

func (f *fakeEngine) ExportModel(path string) error {
	return f.write("model", path)
}

func (f *fakeEngine) ExportParams(path string) error {
	return f.write("params", path)
}

func (f *fakeEngine) ExportSolution(path string) error {
	return f.write("solution", path)
}

func (f *fakeEngine) write(kind, path string) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	if err := os.WriteFile(path, []byte(kind), 0644); err != nil {
		return err
	}
	f.exports = append(f.exports, kind)
	return nil
}

// scriptedDelegate answers from fixed slices; missing answers default to
// true. It records how often each hook ran.
type scriptedDelegate struct {
	before []bool
	after  []bool

	beforeCalls []int
	afterCalls  []int
}

func (d *scriptedDelegate) BeforeIteration(_ Engine, n int, _ Snapshot) bool {
	d.beforeCalls = append(d.beforeCalls, n)
	return answer(d.before, n)
}

func (d *scriptedDelegate) AfterIteration(_ Engine, n int, _ Snapshot) bool {
	d.afterCalls = append(d.afterCalls, n)
	return answer(d.after, n)
}

func answer(script []bool, n int) bool {
	if n-1 < len(script) {
		return script[n-1]
	}
	return true
}

var errBoom = errors.New("boom")
