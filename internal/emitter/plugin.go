package emitter

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/log"
	"github.com/ayusman/wave/internal/plugin"
	"github.com/ayusman/wave/internal/store"
)

// MaxConcurrentPlugins bounds plugin runs in flight; events beyond it are
// dropped for the plugin sink only.
const MaxConcurrentPlugins = 4

// BindingLookup finds the action bound to a label. It returns nil, nil when
// the label is unbound.
type BindingLookup interface {
	GetByLabel(label gesture.Label) (*store.Binding, error)
}

// PluginResolver finds a plugin that supports an action.
type PluginResolver interface {
	Resolve(name, action string) (*plugin.Plugin, error)
}

// PluginRunner runs a plugin.
type PluginRunner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// PluginSink runs the plugin action bound to a fired label. Runs happen in
// the background so a slow plugin never stalls the pipeline.
type PluginSink struct {
	bindings BindingLookup
	plugins  PluginResolver
	runner   PluginRunner
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
}

func NewPluginSink(bindings BindingLookup, plugins PluginResolver, runner PluginRunner) *PluginSink {
	return &PluginSink{
		bindings: bindings,
		plugins:  plugins,
		runner:   runner,
		sem:      semaphore.NewWeighted(MaxConcurrentPlugins),
	}
}

func (p *PluginSink) Name() string { return "plugin" }

// Deliver looks up the binding and starts the plugin. Unbound and disabled
// labels are skipped silently.
func (p *PluginSink) Deliver(ctx context.Context, ev gesture.Event) error {
	binding, err := p.bindings.GetByLabel(ev.Label)
	if err != nil {
		return err
	}
	if binding == nil || !binding.Enabled {
		return nil
	}

	target, err := p.plugins.Resolve(binding.PluginName, binding.ActionName)
	if err != nil {
		return err
	}

	if !p.sem.TryAcquire(1) {
		log.Warn(log.Fields{"plugin": target.Manifest.Name, "label": ev.Label}, "plugin runs saturated, skipping")
		return nil
	}

	req := &plugin.Request{
		Action:  binding.ActionName,
		Gesture: string(ev.Label),
		Hand:    ev.Hand,
		EventID: ev.ID,
		Config:  binding.Config,
	}
	runCtx := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		p.run(runCtx, target, req)
	}()
	return nil
}

func (p *PluginSink) run(ctx context.Context, target *plugin.Plugin, req *plugin.Request) {
	fields := log.Fields{"plugin": target.Manifest.Name, "action": req.Action, "label": req.Gesture}

	resp, err := p.runner.Execute(ctx, target, req)
	if err != nil {
		fields["error"] = err
		log.Warn(fields, "plugin execution failed")
		return
	}
	if !resp.Success {
		fields["error"] = resp.Error
		log.Warn(fields, "plugin reported failure")
		return
	}
	log.Debug(fields, "plugin action completed")
}

// Close waits for running plugins to finish.
func (p *PluginSink) Close() error {
	p.wg.Wait()
	return nil
}
