package perfmon

import (
	"sync"
	"time"

	"github.com/RaveNoX/go-jsonmerge"
	log "github.com/sirupsen/logrus"
)

// ComponentRenderPrefix prefixes the CustomMetric name of a component render.
const ComponentRenderPrefix = "ComponentRender_"

// ComponentProbe times one mount of a UI component and namespaces its
// tracking calls with the component name.
type ComponentProbe struct {
	monitor   *Monitor
	component string
	start     time.Time
	once      sync.Once
}

// Probe starts timing component.
func (m *Monitor) Probe(component string) *ComponentProbe {
	return &ComponentProbe{
		monitor:   m,
		component: component,
		start:     m.cfg.Clock.Now(),
	}
}

// End records the render duration. Only the first call records.
func (p *ComponentProbe) End() {
	p.once.Do(func() {
		elapsed := p.monitor.cfg.Clock.Since(p.start)
		p.monitor.TrackCustomMetric(ComponentRenderPrefix+p.component, elapsedMillis(elapsed), nil)
	})
}

func (p *ComponentProbe) TrackUserAction(action string, details Data) {
	p.monitor.TrackUserAction(action, p.namespaced(details))
}

func (p *ComponentProbe) TrackError(err error, context Data) {
	p.monitor.TrackError(err, p.namespaced(context))
}

// namespaced merges the component name into details.
func (p *ComponentProbe) namespaced(details Data) Data {
	patch := map[string]interface{}{"component": p.component}
	if len(details) == 0 {
		return Data(patch)
	}

	merged, info := jsonmerge.Merge(map[string]interface{}(cloneData(details)), patch)
	if len(info.Errors) > 0 {
		log.WithField("component", p.component).Debugf("merging probe details: %v", info.Errors[0])
	}
	out, ok := merged.(map[string]interface{})
	if !ok {
		return Data(patch)
	}
	return Data(out)
}
