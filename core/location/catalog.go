package location

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/trezcool/hocsinh/core"
)

const latestKey = "latest"

type (
	Province struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}

	Ward struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}

	Meta struct {
		Source    string `json:"source"`
		Provinces int    `json:"provinces"`
		WardKeys  int    `json:"wardKeys"`
		Error     string `json:"error,omitempty"`
	}

	// Snapshot is the catalog served to the form: provinces and their wards, sorted by name.
	Snapshot struct {
		Provinces       []Province        `json:"provinces"`
		WardsByProvince map[string][]Ward `json:"wardsByProvince"`
		Meta            Meta              `json:"meta"`
	}

	// Table is a raw administrative-unit sheet. Header may be empty.
	Table struct {
		Source string
		Header []string
		Rows   [][]string
	}

	// Source loads the raw sheet. It returns a nil Table when no file is available.
	Source interface {
		Load(ctx context.Context) (*Table, error)
	}
)

func emptySnapshot(source string) Snapshot {
	return Snapshot{Provinces: []Province{}, WardsByProvince: map[string][]Ward{}, Meta: Meta{Source: source}}
}

// Cache holds built snapshots until they are evicted.
type Cache struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewCache() *Cache {
	return &Cache{snapshots: make(map[string]Snapshot)}
}

func (c *Cache) Get(key string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[key]
	return s, ok
}

func (c *Cache) Put(key string, s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[key] = s
}

func (c *Cache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = make(map[string]Snapshot)
}

// Catalog builds the location snapshot once and serves it from its cache.
type Catalog struct {
	src    Source
	cache  *Cache
	logger core.Logger
	mu     sync.Mutex // serializes loads
}

func NewCatalog(src Source, cache *Cache, logger core.Logger) *Catalog {
	return &Catalog{src: src, cache: cache, logger: logger}
}

// Latest returns the cached snapshot, rebuilding it first when `refresh` is set or nothing is cached.
// A source failure yields an empty snapshot whose meta carries the error.
func (c *Catalog) Latest(ctx context.Context, refresh bool) Snapshot {
	if refresh {
		c.cache.Evict(latestKey)
	} else if s, ok := c.cache.Get(latestKey); ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.cache.Get(latestKey); ok {
		return s
	}

	var s Snapshot
	t, err := c.src.Load(ctx)
	switch {
	case err != nil:
		c.logger.Error(fmt.Sprintf("loading locations: %v", err), err)
		s = emptySnapshot("none")
		s.Meta.Error = err.Error()
	case t == nil:
		s = emptySnapshot("none")
	default:
		s = Build(t)
	}
	c.logger.Info(fmt.Sprintf("locations loaded: source=%s provinces=%d wardKeys=%d", s.Meta.Source, s.Meta.Provinces, s.Meta.WardKeys))
	c.cache.Put(latestKey, s)
	return s
}

var (
	provinceCodeHeaders = []string{"Mã tỉnh (BNV)", "Ma tinh (BNV)", "Mã tỉnh", "Mã Tỉnh (BNV)"}
	provinceNameHeaders = []string{"Tên tỉnh/TP mới", "Ten tinh/TP moi", "Tên Tỉnh/TP mới", "Tên tỉnh / TP mới"}
	wardCodeHeaders     = []string{"Mã phường/xã mới", "Ma phuong/xa moi", "Mã Phường/Xã mới"}
	wardNameHeaders     = []string{"Tên Phường/Xã mới", "Ten Phuong/Xa moi", "Tên phường/xã mới"}
)

// positions used when the header does not name a column
const (
	provinceCodeIndex = 2
	provinceNameIndex = 3
	wardCodeIndex     = 8
	wardNameIndex     = 9
	minIndexedColumns = 10
)

// Build turns a raw sheet into a snapshot. Columns are found by header name, else by position.
func Build(t *Table) Snapshot {
	s := emptySnapshot(t.Source)

	pc, pn := findColumn(t.Header, provinceCodeHeaders), findColumn(t.Header, provinceNameHeaders)
	wc, wn := findColumn(t.Header, wardCodeHeaders), findColumn(t.Header, wardNameHeaders)
	if pc < 0 || pn < 0 || wc < 0 || wn < 0 {
		if width(t) < minIndexedColumns {
			s.Meta.Error = fmt.Sprintf("not enough columns: %d", width(t))
			return s
		}
		pc, pn = orIndex(pc, provinceCodeIndex), orIndex(pn, provinceNameIndex)
		wc, wn = orIndex(wc, wardCodeIndex), orIndex(wn, wardNameIndex)
	}

	names := make(map[string]string)
	for _, row := range t.Rows {
		pCode, pName := cell(row, pc), cell(row, pn)
		wCode, wName := cell(row, wc), cell(row, wn)
		if pCode == "" || pName == "" || wCode == "" || wName == "" {
			continue
		}
		if isHeaderRow(pCode, pName, wCode, wName) {
			continue
		}
		if strings.HasPrefix(pName, "Tp ") {
			pName = "Thành phố " + strings.TrimPrefix(pName, "Tp ")
		}
		if _, ok := names[pCode]; !ok {
			names[pCode] = pName
			s.Provinces = append(s.Provinces, Province{Code: pCode, Name: pName})
		}
		s.WardsByProvince[pCode] = append(s.WardsByProvince[pCode], Ward{Code: wCode, Name: wName})
	}

	col := collate.New(language.Vietnamese)
	sort.SliceStable(s.Provinces, func(i, j int) bool {
		return col.CompareString(s.Provinces[i].Name, s.Provinces[j].Name) < 0
	})
	for _, wards := range s.WardsByProvince {
		wards := wards
		sort.SliceStable(wards, func(i, j int) bool {
			return col.CompareString(wards[i].Name, wards[j].Name) < 0
		})
	}
	s.Meta.Provinces = len(s.Provinces)
	s.Meta.WardKeys = len(s.WardsByProvince)
	return s
}

func findColumn(header []string, candidates []string) int {
	for _, cand := range candidates {
		for i, h := range header {
			if strings.TrimSpace(h) == cand {
				return i
			}
		}
	}
	return -1
}

func orIndex(found, fallback int) int {
	if found >= 0 {
		return found
	}
	return fallback
}

func width(t *Table) int {
	w := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isHeaderRow(pCode, pName, wCode, wName string) bool {
	return contains(provinceNameHeaders, pName) || contains(wardNameHeaders, wName) ||
		contains(provinceCodeHeaders, pCode) || contains(wardCodeHeaders, wCode)
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
