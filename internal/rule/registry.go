package rule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Constructor builds a rule for one run.
type Constructor func(Deps) Rule

type entry struct {
	number int
	name   string
	ctor   Constructor
}

// Registry maps rule numbers and names to constructors.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]entry
	names   map[string]int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]entry),
		names:   make(map[string]int),
	}
}

var defaultRegistry = NewRegistry()

// Register adds a constructor to the default registry. It panics on a
// duplicate number or name.
func Register(number int, name string, ctor Constructor) {
	if err := defaultRegistry.Register(number, name, ctor); err != nil {
		panic(err)
	}
}

// Default returns the registry populated by Register.
func Default() *Registry { return defaultRegistry }

// Register adds a constructor.
func (r *Registry) Register(number int, name string, ctor Constructor) error {
	if number <= 0 || number > 9999 {
		return fmt.Errorf("rule: number %d out of range", number)
	}
	if name == "" || ctor == nil {
		return fmt.Errorf("rule: %d: name and constructor are required", number)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[number]; ok {
		return fmt.Errorf("rule: number %d already registered by %s", number, e.name)
	}
	key := strings.ToLower(name)
	if _, ok := r.names[key]; ok {
		return fmt.Errorf("rule: name %s already registered", name)
	}
	r.entries[number] = entry{number: number, name: name, ctor: ctor}
	r.names[key] = number
	return nil
}

// Names returns the name of every registered rule keyed by number.
func (r *Registry) Names() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]string, len(r.entries))
	for n, e := range r.entries {
		out[n] = e.name
	}
	return out
}

// Lookup resolves a rule number or case-insensitive name.
func (r *Registry) Lookup(ref string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, err := strconv.Atoi(ref); err == nil {
		_, ok := r.entries[n]
		return n, ok
	}
	n, ok := r.names[strings.ToLower(ref)]
	return n, ok
}

// All instantiates every registered rule, ordered by number, and applies
// stored configuration values to their items.
func (r *Registry) All(deps Deps) []Rule {
	r.mu.RLock()
	nums := make([]int, 0, len(r.entries))
	for n := range r.entries {
		nums = append(nums, n)
	}
	r.mu.RUnlock()
	return r.build(deps, nums)
}

// Select instantiates the rules named by refs, ordered by number. An empty
// refs selects all rules.
func (r *Registry) Select(deps Deps, refs []string) ([]Rule, error) {
	if len(refs) == 0 {
		return r.All(deps), nil
	}
	seen := make(map[int]bool, len(refs))
	var nums []int
	for _, ref := range refs {
		n, ok := r.Lookup(ref)
		if !ok {
			return nil, fmt.Errorf("rule: unknown rule %q", ref)
		}
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	return r.build(deps, nums), nil
}

func (r *Registry) build(deps Deps, nums []int) []Rule {
	sort.Ints(nums)
	out := make([]Rule, 0, len(nums))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range nums {
		rl := r.entries[n].ctor(deps)
		if deps.Store != nil {
			deps.Store.Apply(rl.Name(), rl.ConfigItems())
		}
		out = append(out, rl)
	}
	return out
}
