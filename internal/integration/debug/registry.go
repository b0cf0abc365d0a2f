package debug

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dshills/triggerpoints/internal/logging"
)

// Registry owns the trigger breakpoint records, keyed by file and line.
// It is the only component that creates or destroys records.
//
// All methods are safe for concurrent use. Change notifications are
// delivered after the registry lock is released, so subscribers may call
// back into the registry.
type Registry struct {
	mu sync.RWMutex

	adapter Adapter

	// Records by path, then by line.
	files map[string]map[int]*Breakpoint

	palette      *Palette
	defaultMode  Mode
	defaultColor Color

	notifier *Notifier
	recorder Recorder
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaults sets the mode and colour given to new records.
func WithDefaults(mode Mode, color Color) RegistryOption {
	return func(r *Registry) {
		r.defaultMode = mode
		r.defaultColor = NormalizeColor(string(color))
	}
}

// WithPalette sets the colour palette.
func WithPalette(p *Palette) RegistryOption {
	return func(r *Registry) {
		if p != nil {
			r.palette = p
		}
	}
}

// WithNotifier sets the notifier that receives change events.
func WithNotifier(n *Notifier) RegistryOption {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithRecorder sets the activity recorder.
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry backed by adapter. A nil adapter
// yields records with no native breakpoint, which is useful for hosts that
// only model trigger state.
func NewRegistry(adapter Adapter, opts ...RegistryOption) *Registry {
	r := &Registry{
		adapter:      adapter,
		files:        make(map[string]map[int]*Breakpoint),
		palette:      DefaultPalette(),
		defaultMode:  ModeTriggerAndBreak,
		defaultColor: ColorRed,
		recorder:     NopRecorder{},
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.KeyComponent, "registry")
	if r.notifier == nil {
		r.notifier = NewNotifier(r.logger)
	}
	if !r.defaultMode.UserSettable() {
		r.logger.Warn("default mode not user settable, using trigger-and-break",
			logging.KeyMode, r.defaultMode.String())
		r.defaultMode = ModeTriggerAndBreak
	}
	if !r.palette.Contains(r.defaultColor) {
		r.logger.Warn("default colour not in palette, using first palette colour",
			logging.KeyColor, r.defaultColor.String())
		r.defaultColor = r.palette.First()
	}
	return r
}

// Notifier returns the notifier that publishes this registry's changes.
func (r *Registry) Notifier() *Notifier {
	return r.notifier
}

// Palette returns the active palette.
func (r *Registry) Palette() *Palette {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.palette
}

// Defaults returns the mode and colour given to new records.
func (r *Registry) Defaults() (Mode, Color) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultMode, r.defaultColor
}

// SetDefaults changes the mode and colour given to new records.
func (r *Registry) SetDefaults(mode Mode, color Color) error {
	color = NormalizeColor(string(color))
	if !mode.UserSettable() {
		return fmt.Errorf("default mode %s: %w", mode, ErrReservedMode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.palette.Contains(color) {
		return fmt.Errorf("default colour %q: %w", color, ErrUnknownColor)
	}
	r.defaultMode = mode
	r.defaultColor = color
	return nil
}

// SetPalette replaces the palette. Existing records keep their colours even
// when the new palette lacks them; they still group with each other. If the
// default colour is missing from p, the first colour of p becomes default.
func (r *Registry) SetPalette(p *Palette) error {
	if p == nil || p.Len() == 0 {
		return fmt.Errorf("%w: empty palette", ErrUnknownColor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.palette = p
	if !p.Contains(r.defaultColor) {
		r.defaultColor = p.First()
	}
	return nil
}

// Create returns the record at path:line, creating it and its native
// breakpoint if absent. Repeated calls return the same record.
func (r *Registry) Create(path string, line int) *Breakpoint {
	loc := Loc(path, line)

	r.mu.Lock()
	if b := r.lookup(loc); b != nil {
		r.mu.Unlock()
		return b
	}

	b := &Breakpoint{
		mu:    &r.mu,
		loc:   loc,
		mode:  r.defaultMode,
		color: r.defaultColor,
		valid: true,
	}
	changes := []Change{}
	if r.adapter != nil {
		h, err := r.adapter.Attach(loc)
		if err != nil {
			r.failLocked(b, OpAttach, err)
		} else {
			b.handle = h
			b.native = true
		}
	}

	lines, ok := r.files[path]
	if !ok {
		lines = make(map[int]*Breakpoint)
		r.files[path] = lines
	}
	lines[line] = b
	changes = append(changes, changeOf(ChangeCreated, b.snapshot()))
	r.mu.Unlock()

	r.logger.Debug("breakpoint created",
		logging.KeyLocation, loc.String(),
		logging.KeyMode, b.mode.String(),
		logging.KeyColor, b.color.String(),
	)
	r.notifier.Publish(changes...)
	return b
}

// Get returns the record at path:line.
func (r *Registry) Get(path string, line int) (*Breakpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b := r.lookup(Loc(path, line))
	return b, b != nil
}

// Lookup returns the record at loc.
func (r *Registry) Lookup(loc Location) (*Breakpoint, bool) {
	return r.Get(loc.Path, loc.Line)
}

func (r *Registry) lookup(loc Location) *Breakpoint {
	lines, ok := r.files[loc.Path]
	if !ok {
		return nil
	}
	return lines[loc.Line]
}

// AllInFile returns a snapshot of the records for path, sorted by line.
// The returned slice is the caller's to modify.
func (r *Registry) AllInFile(path string) []*Breakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByLine(r.files[path])
}

// Remove deletes the record at path:line and its native breakpoint.
// It is a no-op when no record exists.
func (r *Registry) Remove(path string, line int) {
	loc := Loc(path, line)

	r.mu.Lock()
	b := r.lookup(loc)
	if b == nil {
		r.mu.Unlock()
		return
	}
	r.evictLocked(b)
	change := changeOf(ChangeRemoved, b.snapshot())
	r.mu.Unlock()

	r.logger.Debug("breakpoint removed", logging.KeyLocation, loc.String())
	r.notifier.Publish(change)
}

// evictLocked deletes the native breakpoint, best effort, and drops the
// record from the map.
func (r *Registry) evictLocked(b *Breakpoint) {
	if b.native && r.adapter != nil {
		if err := r.adapter.Delete(b.handle); err != nil {
			r.logFailure(b.loc, OpDelete, err)
		}
	}
	b.native = false
	b.valid = false

	lines := r.files[b.loc.Path]
	if lines[b.loc.Line] == b {
		delete(lines, b.loc.Line)
	}
	if len(lines) == 0 {
		delete(r.files, b.loc.Path)
	}
}

// ForEach calls visit for every record, ordered by path then line. It
// iterates a snapshot taken before the first call, so visit may add or
// remove records without affecting the traversal.
func (r *Registry) ForEach(visit func(*Breakpoint)) {
	for _, b := range r.All() {
		visit(b)
	}
}

// All returns every record ordered by path then line.
func (r *Registry) All() []*Breakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allLocked()
}

func (r *Registry) allLocked() []*Breakpoint {
	var out []*Breakpoint
	for _, path := range sortedKeys(r.files) {
		out = append(out, sortedByLine(r.files[path])...)
	}
	return out
}

func sortedByLine(lines map[int]*Breakpoint) []*Breakpoint {
	out := make([]*Breakpoint, 0, len(lines))
	for _, line := range sortedKeys(lines) {
		out = append(out, lines[line])
	}
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, lines := range r.files {
		n += len(lines)
	}
	return n
}

// Paths returns the files that hold records, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.files)
}

// SetMode assigns a user-selected mode. Triggered is reserved for the
// trigger controller.
func (r *Registry) SetMode(loc Location, mode Mode) error {
	if !mode.UserSettable() {
		if mode.IsTriggerTarget() {
			return fmt.Errorf("set mode %s at %s: %w", mode, loc, ErrReservedMode)
		}
		return fmt.Errorf("set mode at %s: %w: %d", loc, ErrInvalidMode, int(mode))
	}

	r.mu.Lock()
	b := r.lookup(loc)
	if b == nil {
		r.mu.Unlock()
		return fmt.Errorf("set mode at %s: %w", loc, ErrBreakpointNotFound)
	}
	changed := b.setMode(mode)
	change := changeOf(ChangeUpdated, b.snapshot())
	r.mu.Unlock()

	if changed {
		r.notifier.Publish(change)
	}
	return nil
}

// SetColor assigns a colour from the palette.
func (r *Registry) SetColor(loc Location, color Color) error {
	color = NormalizeColor(string(color))

	r.mu.Lock()
	if !r.palette.Contains(color) {
		r.mu.Unlock()
		return fmt.Errorf("set colour %q at %s: %w", color, loc, ErrUnknownColor)
	}
	b := r.lookup(loc)
	if b == nil {
		r.mu.Unlock()
		return fmt.Errorf("set colour at %s: %w", loc, ErrBreakpointNotFound)
	}
	changed := b.setColor(color)
	change := changeOf(ChangeUpdated, b.snapshot())
	r.mu.Unlock()

	if changed {
		r.notifier.Publish(change)
	}
	return nil
}

// Transition moves every valid record selected by match to mode to, applying
// op to its native breakpoint first. Selection is evaluated against the state
// before any record in the batch changes, so a batch never feeds itself.
// Records whose native operation fails are invalidated and left unchanged.
// The locations that reached mode to are returned in registry order.
func (r *Registry) Transition(match func(Snapshot) bool, to Mode, op NativeOp) []Location {
	r.mu.Lock()
	var selected []*Breakpoint
	for _, b := range r.allLocked() {
		if b.valid && match(b.snapshot()) {
			selected = append(selected, b)
		}
	}

	var (
		done    []Location
		changes []Change
	)
	for _, b := range selected {
		if b.native && r.adapter != nil && op.Apply != nil {
			if err := op.Apply(r.adapter, b.handle); err != nil {
				changes = append(changes, r.failLocked(b, op.Name, err)...)
				continue
			}
		}
		if b.setMode(to) {
			changes = append(changes, changeOf(ChangeUpdated, b.snapshot()))
		}
		done = append(done, b.loc)
	}
	r.mu.Unlock()

	r.notifier.Publish(changes...)
	return done
}

// Invalidate marks the record at loc as unresolvable.
func (r *Registry) Invalidate(loc Location) bool {
	r.mu.Lock()
	b := r.lookup(loc)
	if b == nil || !b.invalidate() {
		r.mu.Unlock()
		return false
	}
	change := changeOf(ChangeInvalidated, b.snapshot())
	r.mu.Unlock()

	r.notifier.Publish(change)
	return true
}

// PurgeInvalid removes every invalid record and returns their locations.
func (r *Registry) PurgeInvalid() []Location {
	r.mu.Lock()
	var (
		purged  []Location
		changes []Change
	)
	for _, b := range r.allLocked() {
		if b.valid {
			continue
		}
		r.evictLocked(b)
		purged = append(purged, b.loc)
		changes = append(changes, changeOf(ChangeRemoved, b.snapshot()))
	}
	r.mu.Unlock()

	if len(purged) > 0 {
		r.logger.Debug("purged invalid breakpoints", logging.KeyCount, len(purged))
	}
	r.notifier.Publish(changes...)
	return purged
}

// Resync re-reads the native line of every record in path and moves
// records that drifted. When two records land on the same line the one that
// did not move wins; the other is invalidated and evicted. Records whose
// native line cannot be read are invalidated in place. The moved records'
// new locations are returned.
func (r *Registry) Resync(path string) []Location {
	r.mu.Lock()
	records := sortedByLine(r.files[path])
	if len(records) == 0 || r.adapter == nil {
		r.mu.Unlock()
		return nil
	}

	var changes []Change
	target := make(map[*Breakpoint]int, len(records))
	for _, b := range records {
		target[b] = b.loc.Line
		if !b.valid || !b.native {
			continue
		}
		line, err := r.adapter.CurrentLine(b.handle)
		if err == nil && line < 1 {
			err = fmt.Errorf("native line %d out of range", line)
		}
		if err != nil {
			changes = append(changes, r.failLocked(b, OpCurrentLine, err)...)
			continue
		}
		target[b] = line
	}

	placed := make(map[int]*Breakpoint, len(records))
	var moved []Location
	place := func(b *Breakpoint) {
		line := target[b]
		if _, taken := placed[line]; taken {
			if b.invalidate() {
				changes = append(changes, changeOf(ChangeInvalidated, b.snapshot()))
			}
			r.evictLocked(b)
			changes = append(changes, changeOf(ChangeRemoved, b.snapshot()))
			return
		}
		placed[line] = b
		if line != b.loc.Line {
			prev := b.loc
			b.loc.Line = line
			c := changeOf(ChangeMoved, b.snapshot())
			c.Previous = prev
			changes = append(changes, c)
			moved = append(moved, b.loc)
		}
	}
	for _, b := range records {
		if target[b] == b.loc.Line {
			place(b)
		}
	}
	for _, b := range records {
		if target[b] != b.loc.Line {
			place(b)
		}
	}
	if len(placed) == 0 {
		delete(r.files, path)
	} else {
		r.files[path] = placed
	}
	r.mu.Unlock()

	r.notifier.Publish(changes...)
	return moved
}

// failLocked invalidates b after a native failure and returns the change to
// publish, if any.
func (r *Registry) failLocked(b *Breakpoint, op string, err error) []Change {
	r.logFailure(b.loc, op, err)
	if !b.invalidate() {
		return nil
	}
	return []Change{changeOf(ChangeInvalidated, b.snapshot())}
}

func (r *Registry) logFailure(loc Location, op string, err error) {
	r.recorder.Invalidated(op)
	rerr := &ResolutionError{Op: op, Location: loc, Err: err}
	r.logger.Debug("native breakpoint unresolved",
		logging.KeyOp, op,
		logging.KeyLocation, loc.String(),
		"error", rerr,
	)
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
