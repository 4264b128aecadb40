package main

import "sort"

type PauseSource string

const (
	PauseAd     PauseSource = "ad"
	PauseHidden PauseSource = "hidden"
	PauseBlur   PauseSource = "blur"
	PauseSDK    PauseSource = "sdk"
	PauseAway   PauseSource = "away"
)

// PauseSet tracks independent suspend sources. Game logic runs only while
// the set is empty. It is owned by a Session and guarded by its lock.
type PauseSet struct {
	sources map[PauseSource]struct{}
}

func (p *PauseSet) Suspend(source PauseSource) {
	if p.sources == nil {
		p.sources = make(map[PauseSource]struct{}, 4)
	}
	p.sources[source] = struct{}{}
}

func (p *PauseSet) Resume(source PauseSource) {
	delete(p.sources, source)
}

func (p *PauseSet) Paused() bool {
	return len(p.sources) > 0
}

func (p *PauseSet) Has(source PauseSource) bool {
	_, ok := p.sources[source]
	return ok
}

func (p *PauseSet) Sources() []PauseSource {
	out := make([]PauseSource, 0, len(p.sources))
	for source := range p.sources {
		out = append(out, source)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
