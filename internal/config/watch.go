package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"
	"time"

	"courtbook/internal/models"
)

// ResourcesChange is one applied version of resources.yaml and how it differs
// from the previous one. The first load reports every resource as added.
type ResourcesChange struct {
	Config  *ResourcesConfig
	Added   []int64
	Removed []int64
	Changed []int64
}

// Empty reports whether no resource differs, e.g. after reformatting the file.
func (c ResourcesChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// ResourcesWatcher polls resources.yaml and reports content changes. Rewrites
// or touches that keep the bytes identical are ignored. A file that fails to
// load, or a change OnChange rejects, is reported through OnError; the last
// good version stays current and the file is retried on the next poll.
type ResourcesWatcher struct {
	Path     string
	Interval time.Duration
	OnChange func(ResourcesChange) error
	OnError  func(error)

	mu      sync.Mutex
	digest  [sha256.Size]byte
	current *ResourcesConfig
}

// NewResourcesWatcher applies the default path and a 30s poll interval.
func NewResourcesWatcher(path string, every time.Duration, onChange func(ResourcesChange) error) *ResourcesWatcher {
	if path == "" {
		path = "configs/resources.yaml"
	}
	if every <= 0 {
		every = 30 * time.Second
	}
	return &ResourcesWatcher{Path: path, Interval: every, OnChange: onChange}
}

// Start loads the file synchronously, so startup fails on a broken config,
// then keeps polling until ctx is done.
func (w *ResourcesWatcher) Start(ctx context.Context) error {
	if _, err := w.Reload(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.Reload(); err != nil && w.OnError != nil {
					w.OnError(err)
				}
			}
		}
	}()
	return nil
}

// Current is the last successfully loaded configuration.
func (w *ResourcesWatcher) Current() *ResourcesConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload reads the file now. It returns false without calling OnChange when
// the content hash is unchanged, and only advances to the new version once
// OnChange accepts it.
func (w *ResourcesWatcher) Reload() (bool, error) {
	data, err := os.ReadFile(w.Path)
	if err != nil {
		return false, fmt.Errorf("read resources config: %w", err)
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	if w.current != nil && sum == w.digest {
		w.mu.Unlock()
		return false, nil
	}
	w.mu.Unlock()

	cfg, err := ParseResourcesConfig(data)
	if err != nil {
		return false, err
	}

	change := DiffResources(w.Current(), cfg)
	if w.OnChange != nil {
		if err := w.OnChange(change); err != nil {
			return false, err
		}
	}

	w.mu.Lock()
	w.current, w.digest = cfg, sum
	w.mu.Unlock()
	return true, nil
}

type resourceSnapshot struct {
	resource models.Resource
	rules    []models.OperatingHourRule
	closures []models.Closure
}

func snapshots(cfg *ResourcesConfig) map[int64]resourceSnapshot {
	out := make(map[int64]resourceSnapshot)
	if cfg == nil {
		return out
	}
	for _, r := range cfg.Resources {
		out[r.ID] = resourceSnapshot{resource: r.Resource(), rules: r.Rules(), closures: cfg.Closures(r.ID)}
	}
	return out
}

// DiffResources compares the stored form of each resource: its policy, its
// operating-hour rules and its closures. prev may be nil.
func DiffResources(prev, next *ResourcesConfig) ResourcesChange {
	before, after := snapshots(prev), snapshots(next)
	change := ResourcesChange{Config: next}
	for id, snap := range after {
		old, ok := before[id]
		switch {
		case !ok:
			change.Added = append(change.Added, id)
		case !reflect.DeepEqual(old, snap):
			change.Changed = append(change.Changed, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			change.Removed = append(change.Removed, id)
		}
	}
	for _, ids := range [][]int64{change.Added, change.Removed, change.Changed} {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return change
}
