package browser

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/page"
)

type openPage struct {
	nav     page.Navigator
	created time.Time
}

// openPages tracks the pages a pool has handed out and not yet released.
type openPages struct {
	engine   config.Engine
	headless bool

	mu    sync.Mutex
	pages map[string]openPage
}

func newOpenPages(engine config.Engine, headless bool) *openPages {
	return &openPages{engine: engine, headless: headless, pages: make(map[string]openPage)}
}

// track registers nav and returns its release func, which is safe to call
// more than once.
func (o *openPages) track(name string, nav page.Navigator, release func()) func() {
	if name == "" {
		name = "page-" + uuid.NewString()
	}
	o.mu.Lock()
	o.pages[name] = openPage{nav: nav, created: time.Now()}
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.pages, name)
			o.mu.Unlock()
			release()
		})
	}
}

// list returns the open pages, oldest first.
func (o *openPages) list() []SessionInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	infos := make([]SessionInfo, 0, len(o.pages))
	for name, p := range o.pages {
		infos = append(infos, SessionInfo{
			Name:       name,
			Engine:     o.engine,
			CurrentURL: p.nav.URL(),
			Headless:   o.headless,
			CreatedAt:  p.created,
		})
	}
	slices.SortFunc(infos, func(a, b SessionInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return infos
}
