package cache

import (
	"sort"
	"sync"
	"time"
)

// DefaultGCTime 是条目失去全部订阅者后的默认保留时长。
const DefaultGCTime = 5 * time.Minute

// StoreOptions 控制内存 Store 的默认行为。
type StoreOptions struct {
	// GCTime 为 Entry.GCTime=0 时使用的保留时长，<=0 时取 DefaultGCTime。
	GCTime time.Duration
	// OnEvict 在条目被 GC 回收后调用（锁外），用于日志与指标。
	OnEvict func(Entry)
}

// NewStore 构造进程内的缓存 Store，每个应用实例各自持有一份。
func NewStore(opts StoreOptions) Store {
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	return &memoryStore{
		entries: make(map[string]*record),
		opts:    opts,
	}
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*record
	nextID  uint64
	version uint64
	opts    StoreOptions
}

type record struct {
	entry     Entry
	listeners map[uint64]Listener
	timer     *time.Timer
	// gcGen 用于识别已被取消的计时器回调。
	gcGen uint64
}

type notification struct {
	listeners []Listener
	event     Event
}

func (s *memoryStore) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[key.Hash()]
	if !ok {
		return Entry{}, false
	}
	return rec.entry, true
}

func (s *memoryStore) Set(key Key, updater Updater) Entry {
	if updater == nil {
		panic("cache: nil updater")
	}
	s.mu.Lock()
	hash := key.Hash()
	rec, exists := s.entries[hash]
	current := Entry{Key: key, Status: StatusIdle}
	if exists {
		current = rec.entry
	}

	next := updater(current, exists)
	next.Key = current.Key
	next.Subscribers = current.Subscribers
	next.Version = s.bumpLocked()
	if next.Status == "" {
		next.Status = StatusIdle
	}

	if !exists {
		rec = &record{listeners: make(map[uint64]Listener)}
		s.entries[hash] = rec
	}
	rec.entry = next
	if rec.entry.Subscribers == 0 && rec.timer == nil {
		s.scheduleGCLocked(hash, rec)
	}
	note := s.notificationLocked(rec, EventUpdated)
	s.mu.Unlock()

	note.deliver()
	return next
}

func (s *memoryStore) Invalidate(prefix Key) []Key {
	s.mu.Lock()
	var (
		matched []Key
		notes   []notification
	)
	for _, rec := range s.entries {
		if !rec.entry.Key.HasPrefix(prefix) {
			continue
		}
		rec.entry.Invalidated = true
		rec.entry.Version = s.bumpLocked()
		matched = append(matched, rec.entry.Key)
		notes = append(notes, s.notificationLocked(rec, EventInvalidated))
	}
	s.mu.Unlock()

	for _, note := range notes {
		note.deliver()
	}
	sortKeys(matched)
	return matched
}

func (s *memoryStore) Remove(key Key) bool {
	s.mu.Lock()
	hash := key.Hash()
	rec, ok := s.entries[hash]
	if !ok {
		s.mu.Unlock()
		return false
	}
	note := s.removeLocked(hash, rec)
	s.mu.Unlock()

	note.deliver()
	return true
}

func (s *memoryStore) RemoveMatching(prefix Key) []Key {
	s.mu.Lock()
	var (
		removed []Key
		notes   []notification
	)
	for hash, rec := range s.entries {
		if !rec.entry.Key.HasPrefix(prefix) {
			continue
		}
		removed = append(removed, rec.entry.Key)
		notes = append(notes, s.removeLocked(hash, rec))
	}
	s.mu.Unlock()

	for _, note := range notes {
		note.deliver()
	}
	sortKeys(removed)
	return removed
}

func (s *memoryStore) Subscribe(key Key, listener Listener) func() {
	s.mu.Lock()
	hash := key.Hash()
	rec, ok := s.entries[hash]
	if !ok {
		rec = &record{
			entry:     Entry{Key: key, Status: StatusIdle, Version: s.bumpLocked()},
			listeners: make(map[uint64]Listener),
		}
		s.entries[hash] = rec
	}
	s.nextID++
	id := s.nextID
	if listener != nil {
		rec.listeners[id] = listener
	}
	rec.entry.Subscribers++
	s.cancelGCLocked(rec)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(hash, rec, id) })
	}
}

func (s *memoryStore) unsubscribe(hash string, rec *record, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// 条目可能已被 Remove 后重建，只处理仍在表中的同一条记录。
	if current, ok := s.entries[hash]; !ok || current != rec {
		return
	}
	delete(rec.listeners, id)
	if rec.entry.Subscribers > 0 {
		rec.entry.Subscribers--
	}
	if rec.entry.Subscribers == 0 {
		s.scheduleGCLocked(hash, rec)
	}
}

func (s *memoryStore) Entries() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, rec := range s.entries {
		out = append(out, rec.entry)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Hash() < out[j].Key.Hash()
	})
	return out
}

func (s *memoryStore) Clear() {
	s.mu.Lock()
	var notes []notification
	for hash, rec := range s.entries {
		notes = append(notes, s.removeLocked(hash, rec))
	}
	s.mu.Unlock()

	for _, note := range notes {
		note.deliver()
	}
}

func (s *memoryStore) removeLocked(hash string, rec *record) notification {
	s.cancelGCLocked(rec)
	delete(s.entries, hash)
	rec.entry.Version = s.bumpLocked()
	note := s.notificationLocked(rec, EventRemoved)
	rec.listeners = make(map[uint64]Listener)
	return note
}

func (s *memoryStore) bumpLocked() uint64 {
	s.version++
	return s.version
}

func (s *memoryStore) scheduleGCLocked(hash string, rec *record) {
	s.cancelGCLocked(rec)
	ttl := rec.entry.GCTime
	if ttl < 0 {
		return
	}
	if ttl == 0 {
		ttl = s.opts.GCTime
	}
	gen := rec.gcGen
	rec.timer = time.AfterFunc(ttl, func() { s.collect(hash, rec, gen) })
}

func (s *memoryStore) cancelGCLocked(rec *record) {
	rec.gcGen++
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
}

func (s *memoryStore) collect(hash string, rec *record, gen uint64) {
	s.mu.Lock()
	current, ok := s.entries[hash]
	if !ok || current != rec || rec.gcGen != gen || rec.entry.Subscribers > 0 {
		s.mu.Unlock()
		return
	}
	rec.timer = nil
	if rec.entry.Fetching {
		// 在途请求完成后由 Set 重新安排回收。
		s.mu.Unlock()
		return
	}
	delete(s.entries, hash)
	evicted := rec.entry
	s.mu.Unlock()

	if s.opts.OnEvict != nil {
		s.opts.OnEvict(evicted)
	}
}

func (s *memoryStore) notificationLocked(rec *record, eventType EventType) notification {
	if len(rec.listeners) == 0 {
		return notification{}
	}
	ids := make([]uint64, 0, len(rec.listeners))
	for id := range rec.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, rec.listeners[id])
	}
	return notification{
		listeners: listeners,
		event:     Event{Type: eventType, Entry: rec.entry},
	}
}

func (n notification) deliver() {
	for _, listener := range n.listeners {
		listener(n.event)
	}
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Hash() < keys[j].Hash()
	})
}
