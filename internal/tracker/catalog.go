package tracker

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	cacheMetaFilename = "cache_meta.json"
	tleCacheExtension = ".tle"
)

var (
	ErrLoadGroupFailed   = errors.New("failed to load TLE group")
	ErrSatelliteNotFound = errors.New("satellite not found")
)

// Catalog хранит элементы спутников с индексами по группе и имени и
// кеширует для каждого спутника инициализированный Propagator.
// Кеш сбрасывается, когда элементы спутника заменяются более свежими.
type Catalog struct {
	mu sync.RWMutex

	entries map[int]*TLE
	byGroup map[string][]int
	byName  map[string][]int
	props   map[int]*Propagator

	fetcher  ElementFetcher
	config   *CatalogConfig
	propOpts []PropagatorOption
	logger   *slog.Logger
	now      func() time.Time

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// CacheMeta — метаданные файлового кеша групп.
type CacheMeta struct {
	Groups map[string]CacheGroupMeta `json:"groups"`
}

type CacheGroupMeta struct {
	UpdatedAt time.Time `json:"updated_at"`
	Count     int       `json:"count"`
}

// CatalogOption настраивает Catalog.
type CatalogOption func(*Catalog)

func WithLogger(logger *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithFetcher задаёт источник групп; по умолчанию Celestrak.
func WithFetcher(f ElementFetcher) CatalogOption {
	return func(c *Catalog) {
		c.fetcher = f
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		c.now = now
	}
}

// NewCatalog создаёт пустой каталог. Конфигурация проверяется и
// дополняется значениями по умолчанию.
func NewCatalog(cfg *CatalogConfig, opts ...CatalogOption) (*Catalog, error) {
	if cfg == nil {
		cfg = DefaultCatalogConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("catalog config: %w", err)
	}

	propOpts, err := cfg.PropagatorOptions()
	if err != nil {
		return nil, fmt.Errorf("catalog config: %w", err)
	}

	c := &Catalog{
		entries:  make(map[int]*TLE),
		byGroup:  make(map[string][]int),
		byName:   make(map[string][]int),
		props:    make(map[int]*Propagator),
		config:   cfg,
		propOpts: propOpts,
		logger:   slog.Default(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.fetcher == nil {
		c.fetcher = NewCelestrakClient()
	}

	return c, nil
}

// Start загружает все источники и запускает периодическое обновление.
// Ошибки начальной загрузки логируются: каталог работает с тем, что удалось загрузить.
func (c *Catalog) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "starting catalog",
		"groups", c.config.Groups,
		"files", c.config.Files,
		"update_interval", c.config.UpdateInterval,
	)

	if err := c.Reload(ctx); err != nil {
		c.logger.WarnContext(ctx, "initial TLE load had errors", "error", err)
	}

	if c.started.CompareAndSwap(false, true) {
		go c.runUpdater(ctx)
	}

	return nil
}

// Stop останавливает обновление и ждёт его завершения.
func (c *Catalog) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	if c.started.Load() {
		<-c.doneCh
	}
}

// Get возвращает элементы по NORAD ID.
func (c *Catalog) Get(noradID int) (*TLE, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tle, ok := c.entries[noradID]

	return tle, ok
}

// ByGroup возвращает элементы группы, упорядоченные по NORAD ID.
func (c *Catalog) ByGroup(group string) []*TLE {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.collect(c.byGroup[strings.ToLower(group)])
}

// ByName ищет спутники по имени без учёта регистра: сначала точное
// совпадение, затем по подстроке.
func (c *Catalog) ByName(name string) []*TLE {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	if ids, ok := c.byName[key]; ok {
		return c.collect(ids)
	}

	var ids []int
	for indexed, list := range c.byName {
		if strings.Contains(indexed, key) {
			ids = append(ids, list...)
		}
	}

	return c.collect(ids)
}

// All возвращает все элементы, упорядоченные по NORAD ID.
func (c *Catalog) All() []*TLE {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.collect(slices.Collect(maps.Keys(c.entries)))
}

func (c *Catalog) collect(ids []int) []*TLE {
	out := make([]*TLE, 0, len(ids))
	for _, id := range ids {
		if tle, ok := c.entries[id]; ok {
			out = append(out, tle)
		}
	}

	slices.SortFunc(out, func(a, b *TLE) int { return cmp.Compare(a.NoradID, b.NoradID) })

	return slices.CompactFunc(out, func(a, b *TLE) bool { return a.NoradID == b.NoradID })
}

// Add добавляет элементы в группу group (может быть пустой). Элементы
// с более ранней эпохой, чем уже известные, игнорируются.
// Возвращает true, если каталог изменился.
func (c *Catalog) Add(tle *TLE, group string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addLocked(tle, group)
}

func (c *Catalog) addLocked(tle *TLE, group string) bool {
	if tle == nil {
		return false
	}

	changed := true
	if old, ok := c.entries[tle.NoradID]; ok {
		switch {
		case tle.Epoch.Before(old.Epoch):
			changed = false
		case tle.Epoch.Equal(old.Epoch) && tle.Line1 == old.Line1 && tle.Line2 == old.Line2:
			changed = false
		default:
			if old.Name != tle.Name {
				removeFromIndex(c.byName, strings.ToLower(old.Name), old.NoradID)
			}
			delete(c.props, tle.NoradID)
		}
	}

	if changed {
		c.entries[tle.NoradID] = tle
		if tle.Name != "" {
			addToIndex(c.byName, strings.ToLower(tle.Name), tle.NoradID)
		}
	}

	if group != "" {
		addToIndex(c.byGroup, strings.ToLower(group), tle.NoradID)
	}

	return changed
}

// Propagator возвращает кешированный Propagator спутника, создавая его
// при первом обращении.
func (c *Catalog) Propagator(noradID int) (*Propagator, error) {
	c.mu.RLock()
	prop, ok := c.props[noradID]
	c.mu.RUnlock()
	if ok {
		return prop, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prop, ok := c.props[noradID]; ok {
		return prop, nil
	}

	tle, ok := c.entries[noradID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSatelliteNotFound, noradID)
	}

	prop, err := NewPropagator(tle, c.propOpts...)
	if err != nil {
		return nil, fmt.Errorf("satellite %d: %w", noradID, err)
	}
	c.props[noradID] = prop

	return prop, nil
}

func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// StaleCount возвращает число спутников с устаревшими элементами.
func (c *Catalog) StaleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	count := 0
	for _, tle := range c.entries {
		if tle.IsStale(now, c.config.MaxTLEAgeDays) {
			count++
		}
	}

	return count
}

// Groups возвращает имена групп в алфавитном порядке.
func (c *Catalog) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.byGroup))
}

func (c *Catalog) GroupCount(group string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byGroup[strings.ToLower(group)])
}

// Reload загружает все файлы и группы из конфигурации.
func (c *Catalog) Reload(ctx context.Context) error {
	var errs []error

	for _, path := range c.config.Files {
		if err := c.LoadFile(path); err != nil {
			c.logger.WarnContext(ctx, "failed to load TLE file", "path", path, "error", err)
			errs = append(errs, err)
		}
	}

	for _, group := range c.config.Groups {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.LoadGroup(ctx, group); err != nil {
			c.logger.WarnContext(ctx, "failed to load group", "group", group, "error", err)
			errs = append(errs, err)
		}
	}

	c.logger.InfoContext(ctx, "catalog reloaded",
		"total_count", c.Count(),
		"stale_count", c.StaleCount(),
		"groups", c.Groups(),
	)

	return errors.Join(errs...)
}

// LoadFile добавляет элементы из файла в группу с именем файла без расширения.
func (c *Catalog) LoadFile(path string) error {
	tles, err := LoadTLEFile(path)
	if err != nil {
		return err
	}

	group := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c.addAll(tles, group)

	return nil
}

// LoadGroup загружает группу. Свежий кеш (моложе интервала обновления)
// используется без обращения к сети; иначе данные загружаются и
// сохраняются в кеш, а при ошибке загрузки берётся устаревший кеш.
func (c *Catalog) LoadGroup(ctx context.Context, group string) error {
	c.logger.DebugContext(ctx, "loading TLE group", "group", group)

	if meta, err := c.loadCacheMeta(); err == nil && c.isCacheFresh(meta, group) {
		if tles, err := c.loadGroupFromCache(group); err == nil {
			c.addAll(tles, group)
			c.logger.DebugContext(ctx, "loaded TLE group from fresh cache", "group", group, "count", len(tles))

			return nil
		}
	}

	tles, err := c.fetcher.FetchGroup(ctx, group)
	if err != nil {
		c.logger.WarnContext(ctx, "fetch failed, trying cache", "group", group, "error", err)

		cached, cacheErr := c.loadGroupFromCache(group)
		if cacheErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadGroupFailed, group, errors.Join(err, cacheErr))
		}

		c.addAll(cached, group)
		c.logger.InfoContext(ctx, "loaded TLE group from cache", "group", group, "count", len(cached))

		return nil
	}

	if err := c.saveGroupToCache(group, tles); err != nil {
		c.logger.WarnContext(ctx, "failed to save cache", "group", group, "error", err)
	}

	c.addAll(tles, group)
	c.logger.InfoContext(ctx, "loaded TLE group", "group", group, "count", len(tles))

	return nil
}

func (c *Catalog) addAll(tles []*TLE, group string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tle := range tles {
		c.addLocked(tle, group)
	}
}

func addToIndex(index map[string][]int, key string, id int) {
	if ids := index[key]; !slices.Contains(ids, id) {
		index[key] = append(ids, id)
	}
}

func removeFromIndex(index map[string][]int, key string, id int) {
	ids := slices.DeleteFunc(index[key], func(v int) bool { return v == id })
	if len(ids) == 0 {
		delete(index, key)
		return
	}
	index[key] = ids
}

func (c *Catalog) runUpdater(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "catalog updater stopped by context")
			return
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "catalog updater stopped")
			return
		case <-ticker.C:
			if err := c.Reload(ctx); err != nil {
				c.logger.WarnContext(ctx, "scheduled reload had errors", "error", err)
			}
		}
	}
}

func (c *Catalog) cachePath(group string) string {
	return filepath.Join(c.config.CacheDir, strings.ToLower(group)+tleCacheExtension)
}

func (c *Catalog) loadCacheMeta() (*CacheMeta, error) {
	data, err := os.ReadFile(filepath.Join(c.config.CacheDir, cacheMetaFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &CacheMeta{Groups: make(map[string]CacheGroupMeta)}, nil
		}

		return nil, fmt.Errorf("reading cache meta: %w", err)
	}

	var meta CacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing cache meta: %w", err)
	}
	if meta.Groups == nil {
		meta.Groups = make(map[string]CacheGroupMeta)
	}

	return &meta, nil
}

func (c *Catalog) saveCacheMeta(meta *CacheMeta) error {
	if err := os.MkdirAll(c.config.CacheDir, 0o750); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache meta: %w", err)
	}

	if err := os.WriteFile(filepath.Join(c.config.CacheDir, cacheMetaFilename), data, 0o600); err != nil {
		return fmt.Errorf("writing cache meta: %w", err)
	}

	return nil
}

// isCacheFresh: кеш группы свежий, если он моложе интервала обновления.
func (c *Catalog) isCacheFresh(meta *CacheMeta, group string) bool {
	gm, ok := meta.Groups[strings.ToLower(group)]
	if !ok {
		return false
	}

	return c.now().Sub(gm.UpdatedAt) < c.config.UpdateInterval
}

func (c *Catalog) loadGroupFromCache(group string) ([]*TLE, error) {
	return LoadTLEFile(c.cachePath(group))
}

func (c *Catalog) saveGroupToCache(group string, tles []*TLE) error {
	if err := os.MkdirAll(c.config.CacheDir, 0o750); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	var b strings.Builder
	for _, tle := range tles {
		b.WriteString(tle.String())
		b.WriteString("\n")
	}

	if err := os.WriteFile(c.cachePath(group), []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	meta, err := c.loadCacheMeta()
	if err != nil {
		c.logger.Warn("failed to load cache meta", "error", err)
		meta = &CacheMeta{Groups: make(map[string]CacheGroupMeta)}
	}

	meta.Groups[strings.ToLower(group)] = CacheGroupMeta{UpdatedAt: c.now(), Count: len(tles)}

	return c.saveCacheMeta(meta)
}
