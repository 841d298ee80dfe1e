package logger

import (
	"sort"
	"sync"
	"sync/atomic"
)

type componentStat struct {
	warns  int64
	errors int64
}

// ComponentReport is the number of warnings and errors a component logged.
type ComponentReport struct {
	Component string `json:"component"`
	Warnings  int64  `json:"warnings"`
	Errors    int64  `json:"errors"`
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// Report returns the warning and error tallies per component, sorted by name.
func Report() []ComponentReport {
	var out []ComponentReport
	components.Range(func(k, v any) bool {
		st := v.(*componentStat)
		out = append(out, ComponentReport{
			Component: k.(string),
			Warnings:  atomic.LoadInt64(&st.warns),
			Errors:    atomic.LoadInt64(&st.errors),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// ResetReport clears all tallies.
func ResetReport() {
	components.Range(func(k, _ any) bool {
		components.Delete(k)
		return true
	})
}
